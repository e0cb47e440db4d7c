package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"terrasync/internal/platform/config"
	"terrasync/internal/platform/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			if cfg.PostgresDSN == "" {
				return fmt.Errorf("TERRASYNC_POSTGRES_DSN is not set")
			}
			db, err := postgres.Open(cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer db.Close()
			return postgres.Migrate(cmd.Context(), db)
		},
	}
}
