package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Environment: "development",
		DataBaseDir: "~/.verina/data",
		LogLevel:    "info",
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			RateLimitRPM: 60,
		},
		Models: ModelsConfig{
			Default:     "openai/gpt-5-codex",
			ChatMode:    "anthropic/claude-sonnet-4.5",
			Compaction:  "google/gemini-2.5-pro",
			Assistant:   "openai/gpt-5",
			DisplayName: "openai/gpt-5-chat",
			Temperature: 0.7,
		},
		Context: ContextConfig{
			Window:                 400_000,
			AutoCompactThreshold:   280_000,
			MaxIterations:          200,
			KeepRecentUserMessages: 10,
		},
		Providers: ProvidersConfig{
			OpenRouterBaseURL: "https://openrouter.ai/api/v1",
		},
		Tracing: TracingConfig{
			Protocol:    "grpc",
			ServiceName: "verina-backend",
		},
	}
}

// Load reads config from a JSON5 file (missing file is fine), then overlays
// env vars. A .env file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values; secrets come from env only.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("OPENROUTER_API_KEY", &c.Providers.OpenRouterAPIKey)
	envStr("EXA_API_KEY", &c.Providers.ExaAPIKey)
	envStr("E2B_API_KEY", &c.Providers.E2BAPIKey)
	envStr("DATA_BASE_DIR", &c.DataBaseDir)
	envStr("ENVIRONMENT", &c.Environment)
	envStr("LOG_LEVEL", &c.LogLevel)
	envStr("VERINA_HOST", &c.Server.Host)

	if v := os.Getenv("VERINA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Tracing.Enabled = true
		c.Tracing.Endpoint = v
	}

	c.LogLevel = strings.ToLower(c.LogLevel)
}

// ExpandHome expands a leading "~/" in a path against the user home dir.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return home + path[1:]
	}
	return path
}

// SlogLevel maps the configured log level string to a slog.Level.
func SlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
