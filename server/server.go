// Package server exposes the check-in engine over HTTP: run start and
// resume, live status, run history, and run detail.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clubops/rollcall/checkin"
	"github.com/clubops/rollcall/internal/version"
)

// Server hosts the check-in API
type Server struct {
	db          *sql.DB
	coordinator *checkin.Coordinator
	logger      *zap.SugaredLogger
	httpServer  *http.Server
}

// NewServer creates a server over the given coordinator
func NewServer(db *sql.DB, coordinator *checkin.Coordinator, logger *zap.SugaredLogger) *Server {
	return &Server{
		db:          db,
		coordinator: coordinator,
		logger:      logger,
	}
}

// routes registers all HTTP handlers
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/api/checkin/runs", s.HandleRuns)
	mux.HandleFunc("/api/checkin/runs/", s.HandleRun)
	mux.HandleFunc("/api/checkin/status", s.HandleStatus)
	return mux
}

// Start begins listening on the given port and blocks until the server
// stops
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Infow("Starting check-in API server",
		"addr", s.httpServer.Addr,
		"version", version.Version)

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the coordinator. An
// interrupted run stays resumable.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down check-in API server")

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.coordinator.Close()
	return err
}
