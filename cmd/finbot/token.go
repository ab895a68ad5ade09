package main

import (
	"fmt"

	"finbot/pkg/auth"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var subject, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration)
			token, err := jwtManager.GenerateToken(subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "operator name embedded in the token")
	cmd.Flags().StringVar(&role, "role", "admin", "operator role")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
