package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("VERINA_PORT", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Context.Window != 400_000 || cfg.Context.AutoCompactThreshold != 280_000 {
		t.Errorf("context = %+v", cfg.Context)
	}
	if cfg.Environment != "development" {
		t.Errorf("environment = %q", cfg.Environment)
	}
}

func TestLoadOverlaysFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	// json5: comments and trailing commas are allowed.
	body := `{
		// local overrides
		log_level: "WARN",
		server: { port: 9001, },
		models: { default: "openai/gpt-5" },
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VERINA_PORT", "9002")
	t.Setenv("EXA_API_KEY", "exa-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log level = %q, want lowercased warn", cfg.LogLevel)
	}
	// Env wins over the file.
	if cfg.Server.Port != 9002 {
		t.Errorf("port = %d, want env override 9002", cfg.Server.Port)
	}
	if cfg.Models.Default != "openai/gpt-5" {
		t.Errorf("default model = %q", cfg.Models.Default)
	}
	if cfg.Providers.ExaAPIKey != "exa-secret" {
		t.Error("exa key not read from env")
	}
	// Untouched fields keep defaults.
	if cfg.Models.Compaction == "" {
		t.Error("compaction model default lost")
	}
}

func TestSecretsNeverReadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	body := `{ providers: { OpenRouterAPIKey: "leaked", openrouter_base_url: "https://proxy.local/v1" } }`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Providers.OpenRouterAPIKey != "" {
		t.Error("api key must come from env only")
	}
	if cfg.Providers.OpenRouterBaseURL != "https://proxy.local/v1" {
		t.Errorf("base url = %q", cfg.Providers.OpenRouterBaseURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults ok", func(c *Config) {}, ""},
		{"bad environment", func(c *Config) { c.Environment = "prod" }, "invalid environment"},
		{
			"production needs model key",
			func(c *Config) { c.Environment = "production" },
			"OPENROUTER_API_KEY",
		},
		{
			"production needs search key",
			func(c *Config) {
				c.Environment = "production"
				c.Providers.OpenRouterAPIKey = "k"
			},
			"EXA_API_KEY",
		},
		{
			"threshold above window",
			func(c *Config) { c.Context.AutoCompactThreshold = c.Context.Window },
			"auto_compact_threshold",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSnapshotReflectsHotFields(t *testing.T) {
	cfg := Default()
	cfg.setHotFields("debug", 120)

	level, rpm := cfg.Snapshot()
	if level != "debug" || rpm != 120 {
		t.Errorf("snapshot = %q, %d", level, rpm)
	}

	// Empty or non-positive values leave current fields alone.
	cfg.setHotFields("", 0)
	level, rpm = cfg.Snapshot()
	if level != "debug" || rpm != 120 {
		t.Errorf("snapshot after no-op = %q, %d", level, rpm)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandHome("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("ExpandHome(~/x) = %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %q", got)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"unknown", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := SlogLevel(tt.in); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
