package main

import (
	"finbot/internal/repository"
	"finbot/pkg/postgres"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
			if err != nil {
				return err
			}
			defer db.Close()

			return repository.Migrate(ctx, db, appLogger)
		},
	}
}
