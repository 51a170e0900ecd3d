package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/memohai/supportbot/internal/db"
	"github.com/memohai/supportbot/internal/logger"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := provideConfig(opts.configPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)
			if !cfg.Postgres.Enabled() {
				return errors.New("postgres is not configured")
			}
			return db.Migrate(logger.L, cfg.Postgres.URL())
		},
	}
}
