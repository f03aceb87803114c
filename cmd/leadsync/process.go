package main

import (
	"github.com/spf13/cobra"
)

var (
	processLimit   int
	processRequeue bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Forward pending leads once and print the batch summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		if processRequeue {
			if _, err := a.Processor.RequeueFailed(ctx, cfg.Sync.MaxRetryCount); err != nil {
				return err
			}
		}

		limit := processLimit
		if limit == 0 {
			limit = cfg.Sync.BatchLimit
		}
		summary, err := a.Processor.ProcessPendingLeads(ctx, limit)
		if err != nil {
			return err
		}

		return printJSON(summary)
	},
}

func init() {
	processCmd.Flags().IntVar(&processLimit, "limit", 0, "maximum leads to forward (default sync.batch_limit)")
	processCmd.Flags().BoolVar(&processRequeue, "requeue-failed", false, "move retryable failed leads back to pending first")
	rootCmd.AddCommand(processCmd)
}
