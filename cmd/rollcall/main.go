package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clubops/rollcall/cmd/rollcall/commands"
	"github.com/clubops/rollcall/logger"
)

var rootCmd = &cobra.Command{
	Use:   "rollcall",
	Short: "Rollcall - bulk member check-in engine",
	Long: `Rollcall - resumable bulk check-in engine for club management.

Rollcall walks the member directory, records paired presence events for
every eligible account, and keeps a durable per-member ledger so an
interrupted run can be resumed without double-processing anyone.

Available commands:
  serve   - Start the check-in API server
  db      - Manage the tracking database
  version - Show version information

Examples:
  rollcall serve               # Start the API server
  rollcall db migrate          # Apply pending schema migrations
  rollcall db stats            # Show run and ledger statistics`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "Path to config file (default ~/.rollcall/config.toml)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
