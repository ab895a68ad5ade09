package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"finbot/internal/repository"
	"finbot/internal/service"
	"finbot/pkg/postgres"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func importCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import OFX/QFX/CSV statements for a user",
		Long: `Import bank statements the same way a document sent over WhatsApp is
imported. Lines are stored as confirmed transactions.

Examples:
  finbot import --user 5511999990000 ~/Downloads/extrato_jan.ofx
  finbot import --user 5511999990000 ~/Downloads/*.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var files []string
			for _, pattern := range args {
				matches, err := filepath.Glob(pattern)
				if err != nil {
					return fmt.Errorf("invalid pattern %s: %w", pattern, err)
				}
				files = append(files, matches...)
			}
			if len(files) == 0 {
				return fmt.Errorf("no files found to import")
			}

			location, err := time.LoadLocation(cfg.Assistant.Timezone)
			if err != nil {
				return fmt.Errorf("invalid timezone %q: %w", cfg.Assistant.Timezone, err)
			}

			db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
			if err != nil {
				return err
			}
			defer db.Close()

			processor := service.NewDataProcessor(
				repository.NewTransactionRepository(db, appLogger),
				service.NewLLMService(&cfg.GigaChat, appLogger),
				service.NewCurrencyService(&cfg.Currency, cfg.Assistant.BaseCurrency, appLogger),
				cfg.Assistant.BaseCurrency,
				cfg.Assistant.ConfidenceThreshold,
				location,
				appLogger,
			)
			statements := service.NewStatementService(processor, appLogger)

			var imported int
			for _, file := range files {
				if !statements.Supports(file, "") {
					appLogger.Warn("Skipping unsupported file", zap.String("file", file))
					continue
				}
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				result, err := statements.Import(ctx, userID, filepath.Base(file), "", data)
				if err != nil {
					appLogger.Error("Import failed", zap.String("file", file), zap.Error(err))
					continue
				}
				imported += len(result.Transactions)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d transactions\n", file, len(result.Transactions))
			}

			appLogger.Info("Import finished", zap.Int("files", len(files)), zap.Int("transactions", imported))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "WhatsApp number that owns the transactions")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
