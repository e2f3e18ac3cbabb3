// Package logging installs the process-wide slog logger: colored output on
// stderr via tint and, when a log file is configured, JSON lines appended to
// that file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
)

// ParseLevel maps debug, info, warn and error to slog levels. Anything else is INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds the logger, installs it as slog's default and returns a
// cleanup that closes the log file. An unopenable file degrades to
// stderr-only logging.
func Setup(level, file string, noColor bool) (*slog.Logger, func() error) {
	lvl := ParseLevel(level)
	console := consoleHandler(os.Stderr, lvl, noColor)

	if file == "" {
		logger := slog.New(console)
		slog.SetDefault(logger)
		return logger, func() error { return nil }
	}

	f, err := openLogFile(file)
	if err != nil {
		logger := slog.New(console)
		slog.SetDefault(logger)
		logger.Error("failed to open log file, using stderr only", "error", err, "file", file)
		return logger, func() error { return nil }
	}

	logger := NewWithWriters(os.Stderr, f, lvl, noColor)
	slog.SetDefault(logger)
	return logger, f.Close
}

// NewWithWriters fans out to a console handler on stderr and a JSON handler on file.
func NewWithWriters(stderr, file io.Writer, level slog.Level, noColor bool) *slog.Logger {
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(consoleHandler(stderr, level, noColor), fileHandler))
}

func consoleHandler(w io.Writer, level slog.Level, noColor bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  level == slog.LevelDebug,
		NoColor:    noColor,
	})
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
