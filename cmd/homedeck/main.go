// Package main is the entry point for the HomeDeck assistant daemon and CLI.
// HomeDeck routes personal-dashboard queries through a safety governor and
// tiered model router into investment and research analysis pipelines.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rclaybrook/homedeck/internal/config"
	"github.com/rclaybrook/homedeck/internal/llm"
	"github.com/rclaybrook/homedeck/internal/logging"
	"github.com/rclaybrook/homedeck/internal/market"
	"github.com/rclaybrook/homedeck/internal/memory"
	"github.com/rclaybrook/homedeck/internal/orchestrator"
	"github.com/rclaybrook/homedeck/internal/pipeline"
	"github.com/rclaybrook/homedeck/internal/router"
	"github.com/rclaybrook/homedeck/internal/safety"
	"github.com/rclaybrook/homedeck/internal/server"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "homedeck",
		Short: "HomeDeck - personal dashboard assistant",
		Long: `HomeDeck is the AI assistant behind your personal cloud dashboard:
  - investment analysis from live market data
  - niche market research with opportunity scoring
  - general chat with conversation memory
All queries pass through a safety governor before any model sees them.

Run the API server:  homedeck serve
One-shot question:   homedeck ask "Analyze AAPL stock"`,
		PersistentPreRunE: initLogging,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.homedeck/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("HomeDeck v%s\n", version)
		},
	})

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(memoryCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: true,
	}
	if verbose {
		logCfg.Level = "debug"
	}
	logging.Setup(logCfg)
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

// buildOrchestrator wires the full stack from configuration.
func buildOrchestrator(cfg *config.Config) (*orchestrator.Orchestrator, *router.Router, error) {
	providers := make(map[string]llm.Provider)
	for name, pc := range cfg.LLM.Providers {
		base := llm.DefaultConfig(name)
		if pc.Endpoint != "" {
			base.Endpoint = pc.Endpoint
		}
		base.APIKey = pc.APIKey
		if pc.TimeoutSec > 0 {
			base.Timeout = time.Duration(pc.TimeoutSec) * time.Second
		}

		switch name {
		case "ollama":
			providers[name] = llm.NewOllamaProvider(base)
		case "anthropic":
			providers[name] = llm.NewAnthropicProvider(base)
		default:
			log.Warn().Str("provider", name).Msg("unknown provider in config, skipping")
		}
	}

	r, err := router.New(providers, router.Config{
		LightModel:    cfg.Router.LightModel,
		StandardModel: cfg.Router.StandardModel,
		PremiumModel:  cfg.Router.PremiumModel,
		MaxTokens:     cfg.Router.MaxTokens,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initialize router: %w", err)
	}

	feed := market.NewClient(market.Config{
		QuoteEndpoint:        cfg.Market.QuoteEndpoint,
		FundamentalsEndpoint: cfg.Market.FundamentalsEndpoint,
		Timeout:              time.Duration(cfg.Market.TimeoutSec) * time.Second,
		CacheTTL:             cfg.Market.CacheTTL,
	})

	store := memory.NewStore(cfg.Memory.Dir)
	orch := orchestrator.New(
		r,
		safety.NewGovernor(),
		pipeline.NewInvestment(r, feed),
		pipeline.NewResearch(r),
		store,
	)
	if cfg.Assistant.UserName != "" {
		orch.SetUserName(cfg.Assistant.UserName)
	}
	orch.SetMemoryRecall(cfg.Assistant.MemoryRecall)
	return orch, r, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			orch, r, err := buildOrchestrator(cfg)
			if err != nil {
				return err
			}

			srv := server.New(cfg.Server.Addr, orch, r, version)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info().Str("version", version).Str("addr", cfg.Server.Addr).Msg("homedeck starting")
			return srv.Run(ctx)
		},
	}
}

func askCmd() *cobra.Command {
	var label string
	var quick bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask HomeDeck a question (one-shot query)",
		Long: `Ask a question and print the answer.

Examples:
  homedeck ask "Analyze AAPL stock"
  homedeck ask "Is meal kit delivery a good business?"
  homedeck ask --label general "What's on my calendar logic?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			orch, _, err := buildOrchestrator(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			result := orch.Handle(ctx, orchestrator.Request{
				Message:         strings.Join(args, " "),
				ForceAgentLabel: label,
				QuickChat:       quick,
			})

			if result.Stage == orchestrator.StageBlocked {
				fmt.Fprintf(os.Stderr, "Blocked: %s\n", result.Reply)
				os.Exit(1)
			}
			fmt.Println(result.Reply)
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "force the agent label (investment, research, general)")
	cmd.Flags().BoolVar(&quick, "quick", false, "skip the analysis pipelines and answer directly")
	return cmd
}

func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Manage the conversation and analysis memory",
	}

	var days int
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove memory records older than the given age",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store := memory.NewStore(cfg.Memory.Dir)
			removed, err := store.Prune(time.Duration(days) * 24 * time.Hour)
			if err != nil {
				return fmt.Errorf("prune memory: %w", err)
			}
			fmt.Printf("Removed %d records older than %d days\n", removed, days)
			return nil
		},
	}
	pruneCmd.Flags().IntVar(&days, "days", 90, "maximum record age in days")
	cmd.AddCommand(pruneCmd)

	return cmd
}
