package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xavierca1/leadsync/internal/infra/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the leads and oauth_tokens tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Open(cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Migrate(cmd.Context(), db, cfg.Store.Driver); err != nil {
			return err
		}
		zap.L().Info("migrations applied", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
