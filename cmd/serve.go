package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/verina/internal/agent"
	"github.com/nextlevelbuilder/verina/internal/config"
	"github.com/nextlevelbuilder/verina/internal/gateway"
	"github.com/nextlevelbuilder/verina/internal/mcp"
	"github.com/nextlevelbuilder/verina/internal/providers"
	"github.com/nextlevelbuilder/verina/internal/sandbox"
	"github.com/nextlevelbuilder/verina/internal/search"
	"github.com/nextlevelbuilder/verina/internal/session"
	"github.com/nextlevelbuilder/verina/internal/tokens"
	"github.com/nextlevelbuilder/verina/internal/tracing"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the backend server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := config.SlogLevel(cfg.LogLevel)
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	if cfg.Providers.OpenRouterAPIKey == "" {
		slog.Warn("OPENROUTER_API_KEY is not set; model calls will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Setup(ctx, cfg.Tracing)
		if err != nil {
			slog.Warn("tracing setup failed", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(shutdownCtx)
			}()
		}
	}

	// Hot reload for log level and rate limit.
	go func() {
		if err := cfg.Watch(ctx, cfgPath); err != nil && ctx.Err() == nil {
			slog.Warn("config watcher stopped", "error", err)
		}
	}()

	provider := providers.NewOpenRouterProvider(
		cfg.Providers.OpenRouterAPIKey,
		cfg.Providers.OpenRouterBaseURL,
		cfg.Models.Default,
	)
	searcher := search.NewClient(cfg.Providers.ExaAPIKey)

	var sandboxes sandbox.Provider
	if cfg.HasE2BKey() {
		sandboxes = sandbox.NewClient(cfg.Providers.E2BAPIKey)
		slog.Info("code execution sandbox enabled")
	} else {
		slog.Info("E2B_API_KEY not set, execute_python disabled")
	}

	var bridge *mcp.Manager
	if len(cfg.MCP) > 0 {
		bridge = mcp.NewManager(mcp.WithConfigs(cfg.MCP))
		if err := bridge.Start(ctx); err != nil {
			slog.Warn("some MCP servers unavailable", "error", err)
		}
		defer bridge.Stop()
	}

	registry := session.NewRegistry(agent.Deps{
		Config:    cfg,
		Provider:  provider,
		Searcher:  searcher,
		Sandboxes: sandboxes,
		Bridge:    bridge,
		Estimator: tokens.NewEstimator(),
	})
	defer registry.CloseAll()

	server := gateway.NewServer(cfg, registry, bridge)
	if err := server.Start(ctx); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}
