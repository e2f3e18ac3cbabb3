package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/gabai/gabai/internal/api"
	"github.com/gabai/gabai/internal/assistant"
	"github.com/gabai/gabai/internal/auth"
	"github.com/gabai/gabai/internal/categorize"
	"github.com/gabai/gabai/internal/config"
	"github.com/gabai/gabai/internal/lists"
	"github.com/gabai/gabai/internal/llm"
	"github.com/gabai/gabai/internal/logging"
	"github.com/gabai/gabai/internal/ocr"
	"github.com/gabai/gabai/internal/profile"
	"github.com/gabai/gabai/internal/storage"
	"github.com/gabai/gabai/internal/voice"
	"github.com/gabai/gabai/internal/worker"
)

const shutdownTimeout = 5 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the GabAi server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running GabAi server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show GabAi server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "gabai.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func serverAddr(cfg config.Config) string {
	return net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
}

// services holds everything built from config that both the HTTP server and
// the MCP server need.
type services struct {
	resolver    *lists.Resolver
	categorizer *categorize.Categorizer
	assistant   *assistant.Handler
	profiles    *profile.Manager
	llm         *llm.Client
}

func buildServices(cfg config.Config, store *storage.Store) services {
	client := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout)
	loc := cfg.Assistant.Location()

	resolver := lists.NewResolver(store)
	categorizer := categorize.New(client, cfg.LLM.FastModel)
	profiles := profile.NewManager(store)
	dispatcher := assistant.NewDispatcher(store, resolver, categorizer, loc)
	handler := assistant.NewHandler(store, client, profiles, dispatcher, assistant.HandlerConfig{
		Model:        cfg.LLM.ChatModel,
		Location:     loc,
		HistoryLimit: cfg.Assistant.HistoryLimit,
	})

	return services{
		resolver:    resolver,
		categorizer: categorizer,
		assistant:   handler,
		profiles:    profiles,
		llm:         client,
	}
}

func newRouter(cfg config.Config, store *storage.Store, svc services) http.Handler {
	return api.NewRouter(api.Deps{
		Store:       store,
		Assistant:   svc.assistant,
		Categorizer: svc.categorizer,
		Resolver:    svc.resolver,
		Profiles:    svc.profiles,
		Passwords:   auth.NewPasswordAuthenticator(store),
		Tokens:      auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL),
		Scanner:     ocr.NewScanner(svc.llm, cfg.LLM.VisionModel, cfg.LLM.FastModel),
		Speech: voice.NewService(svc.llm, voice.Config{
			TranscribeModel: cfg.LLM.TranscribeModel,
			BaseURL:         cfg.Voice.BaseURL,
			APIKey:          cfg.Voice.APIKey,
			VoiceID:         cfg.Voice.VoiceID,
			Timeout:         cfg.LLM.Timeout,
		}),
		Location:       cfg.Assistant.Location(),
		RequestTimeout: cfg.Server.RequestTimeout,
		SecureCookies:  !isLoopback(cfg.Server.Host),
	})
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog := logging.Setup(cfg.Log.Level, cfg.Log.File, noColor)
	defer closeLog()
	logger.Info("starting", "version", version)

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := "http://" + serverAddr(cfg) + "/health"
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("gabai is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("gabai is already running on %s", serverAddr(cfg))
		return fmt.Errorf("server already running on %s", serverAddr(cfg))
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	svc := buildServices(cfg, store)
	srv := &http.Server{
		Addr:              serverAddr(cfg),
		Handler:           h2c.NewHandler(newRouter(cfg, store, svc), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	w := worker.NewWorker(store, svc.categorizer, cfg.Worker.PollInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", srv.Addr, "timezone", cfg.Assistant.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		w.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("gabai is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop gabai (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to gabai (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + serverAddr(cfg) + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on %s", serverAddr(cfg))
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if err := cfg.Validate(); err != nil {
		printStatus("Config", "incomplete (%v)", err)
	} else {
		printStatus("Config", "ok")
	}
	printStatus("Chat model", "%s", cfg.LLM.ChatModel)
	printStatus("Fast model", "%s", cfg.LLM.FastModel)
	printStatus("Timezone", "%s", cfg.Assistant.Timezone)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)

	if s, err := loadSession(sessionFilePath(cfg.Storage.DataDir)); err == nil {
		printStatus("Signed in", "%s", s.Email)
	} else {
		printStatus("Signed in", "no (run `gabai login`)")
	}
	return nil
}
