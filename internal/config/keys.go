package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

func (t keyType) String() string {
	switch t {
	case kInt:
		return "integer"
	case kDuration:
		return "duration"
	default:
		return "string"
	}
}

type keySpec struct {
	key      string
	typ      keyType
	env      string
	secret   bool
	required bool
	apply    func(cfg *Config, v any)
	extract  func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "GABAI_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "GABAI_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.request_timeout", typ: kDuration, env: "GABAI_SERVER_REQUEST_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Server.RequestTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Server.RequestTimeout },
	},
	{
		key: "llm.base_url", typ: kString, env: "GABAI_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.api_key", typ: kString, env: "GABAI_LLM_API_KEY",
		secret: true, required: true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.chat_model", typ: kString, env: "GABAI_LLM_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.ChatModel },
	},
	{
		key: "llm.fast_model", typ: kString, env: "GABAI_LLM_FAST_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.FastModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.FastModel },
	},
	{
		key: "llm.vision_model", typ: kString, env: "GABAI_LLM_VISION_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.VisionModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.VisionModel },
	},
	{
		key: "llm.transcribe_model", typ: kString, env: "GABAI_LLM_TRANSCRIBE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.TranscribeModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.TranscribeModel },
	},
	{
		key: "llm.timeout", typ: kDuration, env: "GABAI_LLM_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.LLM.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.LLM.Timeout },
	},
	{
		key: "voice.base_url", typ: kString, env: "GABAI_VOICE_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Voice.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Voice.BaseURL },
	},
	{
		key: "voice.elevenlabs_api_key", typ: kString, env: "GABAI_VOICE_ELEVENLABS_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Voice.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Voice.APIKey },
	},
	{
		key: "voice.voice_id", typ: kString, env: "GABAI_VOICE_VOICE_ID",
		apply:   func(cfg *Config, v any) { cfg.Voice.VoiceID = v.(string) },
		extract: func(cfg Config) any { return cfg.Voice.VoiceID },
	},
	{
		key: "storage.data_dir", typ: kString, env: "GABAI_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "auth.jwt_secret", typ: kString, env: "GABAI_AUTH_JWT_SECRET",
		secret: true, required: true,
		apply:   func(cfg *Config, v any) { cfg.Auth.JWTSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.JWTSecret },
	},
	{
		key: "auth.session_ttl", typ: kDuration, env: "GABAI_AUTH_SESSION_TTL",
		apply:   func(cfg *Config, v any) { cfg.Auth.SessionTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Auth.SessionTTL },
	},
	{
		key: "log.level", typ: kString, env: "GABAI_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.file", typ: kString, env: "GABAI_LOG_FILE",
		apply:   func(cfg *Config, v any) { cfg.Log.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.File },
	},
	{
		key: "assistant.timezone", typ: kString, env: "GABAI_ASSISTANT_TIMEZONE",
		apply:   func(cfg *Config, v any) { cfg.Assistant.Timezone = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.Timezone },
	},
	{
		key: "assistant.history_limit", typ: kInt, env: "GABAI_ASSISTANT_HISTORY_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Assistant.HistoryLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Assistant.HistoryLimit },
	},
	{
		key: "worker.poll_interval", typ: kDuration, env: "GABAI_WORKER_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Worker.PollInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Worker.PollInterval },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parseValue converts raw into the Go type a key expects.
func parseValue(s keySpec, raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok, err := b.Lookup(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := parseValue(s, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring config value %s=%q: %v\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applySecrets(cfg *Config, secrets secretStore) {
	for _, s := range specs {
		if !s.secret {
			continue
		}
		if v, err := secrets.Get(s.key); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
