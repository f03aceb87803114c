package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xavierca1/leadsync/internal/config"
)

var version = "dev"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "leadsync",
	Short:        "Forward website leads to Zoho CRM",
	Long:         "Captures leads from the web form and chatbot, stores them, and forwards them to Zoho CRM with OAuth2 token refresh and retries.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
