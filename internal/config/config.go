package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Voice     VoiceConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Log       LogConfig
	Assistant AssistantConfig
	Worker    WorkerConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
}

type LLMConfig struct {
	BaseURL         string
	APIKey          string
	ChatModel       string
	FastModel       string
	VisionModel     string
	TranscribeModel string
	Timeout         time.Duration
}

type VoiceConfig struct {
	BaseURL string
	APIKey  string
	VoiceID string
}

type StorageConfig struct {
	DataDir string
}

type AuthConfig struct {
	JWTSecret  string
	SessionTTL time.Duration
}

type LogConfig struct {
	Level string
	File  string
}

type AssistantConfig struct {
	Timezone     string
	HistoryLimit int
}

type WorkerConfig struct {
	PollInterval time.Duration
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           5000,
			RequestTimeout: 60 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:         "https://api.openai.com/v1",
			ChatModel:       "gpt-4o",
			FastModel:       "gpt-4o-mini",
			VisionModel:     "gpt-4o",
			TranscribeModel: "whisper-1",
			Timeout:         30 * time.Second,
		},
		Voice: VoiceConfig{
			BaseURL: "https://api.elevenlabs.io",
			VoiceID: "21m00Tcm4TlvDq8ikWAM",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Auth: AuthConfig{
			SessionTTL: 7 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
		Assistant: AssistantConfig{
			Timezone:     "America/New_York",
			HistoryLimit: 10,
		},
		Worker: WorkerConfig{
			PollInterval: time.Second,
		},
	}
}

// Load reads configuration from the JSON file backend
// ($XDG_CONFIG_HOME/gabai/config.json), then the secrets file, then
// GABAI_* environment variables, each layer overriding the previous one.
//
// Load does not check for required secrets; call Validate before starting
// the server.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), fileSecrets{path: secretsFilePath()})
}

// secretStore abstracts the secrets file for testing.
type secretStore interface {
	Get(account string) (string, error)
}

func loadWith(b Backend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applySecrets(&cfg, secrets)
	applyEnvOverrides(&cfg)

	return cfg, nil
}

// Validate reports missing secrets and values the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	for _, s := range specs {
		if !s.required {
			continue
		}
		if v, _ := s.extract(c).(string); strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("missing required config %s: set environment variable %s or run `gabai config set-secret %s`", s.key, s.env, s.key))
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if _, err := time.LoadLocation(c.Assistant.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("assistant.timezone %q: %w", c.Assistant.Timezone, err))
	}
	if c.Assistant.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("assistant.history_limit must be positive, got %d", c.Assistant.HistoryLimit))
	}
	return errors.Join(errs...)
}

// Location returns the assistant timezone, falling back to UTC.
func (c AssistantConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "gabai-data"
		}
	}
	return filepath.Join(dir, "gabai")
}
