package commands

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clubops/rollcall/config"
	"github.com/clubops/rollcall/errors"
)

// ConfigPath is the optional --config override, set on the root command
var ConfigPath string

// loadConfig loads configuration, honoring the --config flag when given
func loadConfig() (*config.Config, error) {
	if ConfigPath != "" {
		return config.LoadFromFile(ConfigPath)
	}
	return config.Load()
}

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the rollcall tracking database",
	Long: `Manage the rollcall tracking database.

Examples:
  rollcall db migrate          # Apply pending schema migrations
  rollcall db stats            # Show run and ledger statistics`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show run and ledger statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	fmt.Println("Migrations applied")
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	var totalRuns, completedRuns, failedRuns, resumableRuns int
	err = database.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(CASE WHEN status = 'completed' THEN 1 END),
			COUNT(CASE WHEN status = 'failed' THEN 1 END),
			COUNT(CASE WHEN status IN ('running', 'processing', 'resuming', 'failed') THEN 1 END)
		FROM checkin_runs
	`).Scan(&totalRuns, &completedRuns, &failedRuns, &resumableRuns)
	if err != nil && err != sql.ErrNoRows {
		return errors.Wrap(err, "failed to query run stats")
	}

	var ledgerRows, distinctMembers, totalCheckins int
	err = database.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT member_id), COALESCE(SUM(success_count), 0)
		FROM member_checkins
	`).Scan(&ledgerRows, &distinctMembers, &totalCheckins)
	if err != nil && err != sql.ErrNoRows {
		return errors.Wrap(err, "failed to query ledger stats")
	}

	fmt.Println("Rollcall Database Statistics")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Printf("Database Path:      %s\n", cfg.Database.Path)
	fmt.Printf("Total Runs:         %d\n", totalRuns)
	fmt.Printf("  Completed:        %d\n", completedRuns)
	fmt.Printf("  Failed:           %d\n", failedRuns)
	fmt.Printf("  Resumable:        %d\n", resumableRuns)
	fmt.Println()
	fmt.Printf("Ledger Rows:        %d\n", ledgerRows)
	fmt.Printf("Distinct Members:   %d\n", distinctMembers)
	fmt.Printf("Recorded Check-ins: %d\n", totalCheckins)

	return nil
}
