package config

import (
	"fmt"
	"sync"
)

// Config is the root configuration for the Verina backend.
type Config struct {
	Environment string `json:"environment"` // "development", "staging", "production"
	DataBaseDir string `json:"data_base_dir"`
	LogLevel    string `json:"log_level"`

	Server    ServerConfig                `json:"server"`
	Models    ModelsConfig                `json:"models"`
	Context   ContextConfig               `json:"context"`
	Providers ProvidersConfig             `json:"providers"`
	Tracing   TracingConfig               `json:"tracing,omitempty"`
	MCP       map[string]*MCPServerConfig `json:"mcp_servers,omitempty"`

	mu sync.RWMutex
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	RateLimitRPM int    `json:"rate_limit_rpm"`
}

// ModelsConfig names the models used for each role.
type ModelsConfig struct {
	Default     string  `json:"default"`      // main react loop
	ChatMode    string  `json:"chat_mode"`    // Chat Mode answers
	Compaction  string  `json:"compaction"`   // compaction sub-agent
	Assistant   string  `json:"assistant"`    // research_assistant sub-agent
	DisplayName string  `json:"display_name"` // session title synthesis
	Temperature float64 `json:"temperature"`
}

// ContextConfig bounds the react loop and the context-window budget.
type ContextConfig struct {
	Window                 int `json:"window"`
	AutoCompactThreshold   int `json:"auto_compact_threshold"`
	MaxIterations          int `json:"max_iterations"`
	KeepRecentUserMessages int `json:"keep_recent_user_messages"`
}

// ProvidersConfig holds vendor credentials and endpoints.
// API keys are NEVER read from the config file — env only.
type ProvidersConfig struct {
	OpenRouterAPIKey  string `json:"-"` // from env OPENROUTER_API_KEY only
	OpenRouterBaseURL string `json:"openrouter_base_url,omitempty"`
	ExaAPIKey         string `json:"-"` // from env EXA_API_KEY only
	E2BAPIKey         string `json:"-"` // from env E2B_API_KEY only
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint,omitempty"` // e.g. "localhost:4317" (grpc) or "localhost:4318" (http)
	Protocol    string `json:"protocol,omitempty"` // "grpc" (default) or "http"
	ServiceName string `json:"service_name,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"`
}

// MCPServerConfig describes one external tool server.
type MCPServerConfig struct {
	Transport  string            `json:"transport,omitempty"` // "stdio" (default) or "sse"
	Command    string            `json:"command,omitempty"`
	Args       []string          `json:"args,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	URL        string            `json:"url,omitempty"`
	TimeoutSec int               `json:"timeout_sec,omitempty"`
	Disabled   bool              `json:"disabled,omitempty"`
}

// IsEnabled reports whether the server should be connected.
func (c *MCPServerConfig) IsEnabled() bool { return c != nil && !c.Disabled }

// HasE2BKey reports whether the code-execution sandbox is configured.
// Absence disables the execute_python tool entirely (it is not registered).
func (c *Config) HasE2BKey() bool { return c.Providers.E2BAPIKey != "" }

// Validate enforces per-environment requirements.
// Production requires the model and search vendor keys.
func (c *Config) Validate() error {
	switch c.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment %q (want development, staging or production)", c.Environment)
	}

	if c.Environment == "production" {
		if c.Providers.OpenRouterAPIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required in production")
		}
		if c.Providers.ExaAPIKey == "" {
			return fmt.Errorf("EXA_API_KEY is required in production")
		}
	}

	if c.Context.AutoCompactThreshold >= c.Context.Window {
		return fmt.Errorf("auto_compact_threshold (%d) must be below context window (%d)",
			c.Context.AutoCompactThreshold, c.Context.Window)
	}
	return nil
}

// Snapshot returns a copy of the hot-reloadable fields under the read lock.
func (c *Config) Snapshot() (logLevel string, rateLimitRPM int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LogLevel, c.Server.RateLimitRPM
}

func (c *Config) setHotFields(logLevel string, rateLimitRPM int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if rateLimitRPM > 0 {
		c.Server.RateLimitRPM = rateLimitRPM
	}
}
