package commands

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clubops/rollcall/checkin"
	"github.com/clubops/rollcall/clubhub"
	"github.com/clubops/rollcall/config"
	"github.com/clubops/rollcall/db"
	"github.com/clubops/rollcall/errors"
	"github.com/clubops/rollcall/logger"
	"github.com/clubops/rollcall/server"
)

var servePortFlag int

// ServeCmd represents the serve command
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the check-in API server",
	Long: `Start the HTTP server exposing the bulk check-in engine.

The server hosts run start/resume, live status, resumable run listing,
and per-run ledger detail. At most one run executes at a time; an
interrupted run can be resumed from the ledger after restart.`,
	RunE: runServe,
}

func init() {
	ServeCmd.Flags().IntVarP(&servePortFlag, "port", "p", 0, "Port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	port := cfg.Server.Port
	if servePortFlag != 0 {
		port = servePortFlag
	}
	if port == 0 {
		port = config.DefaultServerPort
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	hub := clubhub.NewClient(clubhub.Config{
		BaseURL:  cfg.ClubHub.BaseURL,
		Token:    cfg.ClubHub.Token,
		Timeout:  time.Duration(cfg.ClubHub.TimeoutSeconds) * time.Second,
		PageSize: cfg.ClubHub.PageSize,
	})

	checkinLog := logger.Logger.Named("checkin")
	store := checkin.NewStore(database)
	tracker := checkin.NewTracker()
	executor := checkin.NewExecutor(store, hub, tracker, checkinLog, checkin.ExecutorOptions{
		Visit: checkin.Visit{
			ClubID: cfg.ClubHub.ClubID,
			DoorID: cfg.ClubHub.DoorID,
			Manual: true,
		},
		PaceDelay:             time.Duration(cfg.Checkin.PaceDelayMillis) * time.Millisecond,
		ProgressWriteInterval: cfg.Checkin.ProgressWriteInterval,
	})
	coordinator := checkin.NewCoordinator(store, hub, executor, tracker, checkinLog)

	srv := server.NewServer(database, coordinator, logger.Logger.Named("server"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(port)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Logger.Infow("Received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openDatabase opens the configured SQLite database and applies pending
// migrations, creating the parent directory on first run
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	path := cfg.Database.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create database directory %s", dir)
		}
	}

	sqlDB, err := db.Open(path, logger.Logger)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(sqlDB, logger.Logger); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return sqlDB, nil
}
