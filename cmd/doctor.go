package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/verina/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("verina doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Providers:")
	checkKey("OpenRouter", cfg.Providers.OpenRouterAPIKey)
	checkKey("Exa search", cfg.Providers.ExaAPIKey)
	checkKey("E2B sandbox", cfg.Providers.E2BAPIKey)

	fmt.Println()
	fmt.Println("  Models:")
	fmt.Printf("    %-14s %s\n", "Default:", cfg.Models.Default)
	fmt.Printf("    %-14s %s\n", "Chat mode:", cfg.Models.ChatMode)
	fmt.Printf("    %-14s %s\n", "Compaction:", cfg.Models.Compaction)
	fmt.Printf("    %-14s %s\n", "Assistant:", cfg.Models.Assistant)

	fmt.Println()
	fmt.Println("  Data:")
	dataDir := config.ExpandHome(cfg.DataBaseDir)
	fmt.Printf("    %-14s %s", "Directory:", dataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		fmt.Printf(" (NOT WRITABLE: %s)\n", err)
	} else {
		fmt.Println(" (OK)")
	}

	if len(cfg.MCP) > 0 {
		fmt.Println()
		fmt.Println("  MCP servers:")
		for name, sc := range cfg.MCP {
			state := "enabled"
			if !sc.IsEnabled() {
				state = "disabled"
			}
			transport := sc.Transport
			if transport == "" {
				transport = "stdio"
			}
			fmt.Printf("    %-14s %s (%s)\n", name+":", state, transport)
		}
	}

	if cfg.Tracing.Enabled {
		fmt.Println()
		fmt.Printf("  Tracing:  enabled (%s %s)\n", cfg.Tracing.Protocol, cfg.Tracing.Endpoint)
	}

	fmt.Println()
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Validation: FAILED (%s)\n", err)
		return
	}
	fmt.Println("  Validation: OK")
}

func checkKey(name, key string) {
	if key == "" {
		fmt.Printf("    %-14s not configured\n", name+":")
		return
	}
	fmt.Printf("    %-14s configured (%d chars)\n", name+":", len(key))
}
