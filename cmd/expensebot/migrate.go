package main

import (
	"github.com/spf13/cobra"

	"expensebot/internal/backend"
	"expensebot/internal/cli"
	"expensebot/internal/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.ValidateStorage(); err != nil {
				return err
			}
			logger := cli.SetupLogger(cfg)

			bcfg, err := backend.FromAppConfig(cfg)
			if err != nil {
				return err
			}
			if err := backend.NewFactory(logger).Migrate(cmd.Context(), bcfg); err != nil {
				return err
			}
			logger.Info("Migrations applied", "backend", bcfg.Type)
			return nil
		},
	}
}
