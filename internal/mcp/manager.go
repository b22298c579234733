// Package mcp bridges external MCP tool servers into the tool registry.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/verina/internal/config"
	"github.com/nextlevelbuilder/verina/internal/tools"
)

const (
	healthCheckInterval  = 30 * time.Second
	initialBackoff       = 2 * time.Second
	maxBackoff           = 60 * time.Second
	maxReconnectAttempts = 10
)

// ServerStatus reports the connection status of an MCP server.
type ServerStatus struct {
	Name      string `json:"name"`
	Transport string `json:"transport"`
	Connected bool   `json:"connected"`
	ToolCount int    `json:"tool_count"`
	Error     string `json:"error,omitempty"`
}

// serverState tracks a single MCP server connection.
type serverState struct {
	name       string
	transport  string
	client     *mcpclient.Client
	connected  atomic.Bool
	toolNames  []string
	timeoutSec int
	cancel     context.CancelFunc

	mu             sync.Mutex
	reconnAttempts int
	lastErr        string
}

// Manager orchestrates MCP server connections. Discovered tools are
// exposed through BridgeTools() under the mcp_<server>_<tool> naming
// rule; the engine registers them into stage registries as needed.
type Manager struct {
	mu      sync.RWMutex
	servers map[string]*serverState
	// order of successful connections, for LIFO teardown
	order   []string
	bridges map[string][]*BridgeTool

	configs map[string]*config.MCPServerConfig
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithConfigs sets the static MCP server configs.
func WithConfigs(cfgs map[string]*config.MCPServerConfig) ManagerOption {
	return func(m *Manager) {
		m.configs = cfgs
	}
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		servers: make(map[string]*serverState),
		bridges: make(map[string][]*BridgeTool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start connects to all configured MCP servers concurrently. A failing
// server is logged and skipped; it does not prevent others from starting.
func (m *Manager) Start(ctx context.Context) error {
	if len(m.configs) == 0 {
		return nil
	}

	var (
		errMu sync.Mutex
		errs  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	for name, cfg := range m.configs {
		if !cfg.IsEnabled() {
			slog.Info("mcp.server.disabled", "server", name)
			continue
		}
		g.Go(func() error {
			if err := m.connectServer(gctx, name, cfg); err != nil {
				slog.Warn("mcp.server.connect_failed", "server", name, "error", err)
				errMu.Lock()
				errs = append(errs, fmt.Sprintf("%s: %v", name, err))
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("some MCP servers failed to connect: %s", joinErrors(errs))
	}
	return nil
}

// BridgeTools returns the tools of all currently connected servers.
func (m *Manager) BridgeTools() []tools.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []tools.Tool
	for _, name := range m.order {
		for _, bt := range m.bridges[name] {
			out = append(out, bt)
		}
	}
	return out
}

// ToolNames returns all bridged tool names.
func (m *Manager) ToolNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for _, ss := range m.servers {
		names = append(names, ss.toolNames...)
	}
	return names
}

// Stop shuts down all server connections in reverse connect order.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.order) - 1; i >= 0; i-- {
		name := m.order[i]
		ss, ok := m.servers[name]
		if !ok {
			continue
		}
		if ss.cancel != nil {
			ss.cancel()
		}
		if ss.client != nil {
			if err := ss.client.Close(); err != nil {
				slog.Debug("mcp.server.close_error", "server", name, "error", err)
			}
		}
	}
	m.servers = make(map[string]*serverState)
	m.bridges = make(map[string][]*BridgeTool)
	m.order = nil
}

// Status returns the status of all connected MCP servers.
func (m *Manager) Status() []ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]ServerStatus, 0, len(m.servers))
	for _, ss := range m.servers {
		ss.mu.Lock()
		lastErr := ss.lastErr
		ss.mu.Unlock()
		statuses = append(statuses, ServerStatus{
			Name:      ss.name,
			Transport: ss.transport,
			Connected: ss.connected.Load(),
			ToolCount: len(ss.toolNames),
			Error:     lastErr,
		})
	}
	return statuses
}

func joinErrors(errs []string) string {
	result := ""
	for i, e := range errs {
		if i > 0 {
			result += "; "
		}
		result += e
	}
	return result
}
