package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Inspect or manage the stored CRM OAuth token",
}

var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a valid access token is stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		status, err := a.Tokens.GetTokenStatus(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(status)
	},
}

var tokenRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the access token now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		status, err := a.Tokens.ForceRefresh(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(status)
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored token pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Tokens.ClearStoredTokens(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "tokens cleared")
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	tokenCmd.AddCommand(tokenStatusCmd, tokenRefreshCmd, tokenClearCmd)
	rootCmd.AddCommand(tokenCmd)
}
