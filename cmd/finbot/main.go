package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finbot/pkg/config"
	"finbot/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg       *config.Config
	appLogger *zap.Logger
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finbot",
		Short: "WhatsApp finance assistant",
		Long: `finbot records expenses and income sent over WhatsApp, answers questions
about them and produces monthly reports.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := logger.Init(cfg.Logger.Level); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			appLogger = logger.Get()
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			logger.Sync()
		},
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(tokenCmd())
	cmd.AddCommand(importCmd())
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
