package server

import (
	"net/http"

	"github.com/clubops/rollcall/errors"
	"github.com/clubops/rollcall/internal/version"
)

// startRunRequest is the body for POST /api/checkin/runs. An empty body
// starts a fresh run; resume_run_id resumes an interrupted one.
type startRunRequest struct {
	ResumeRunID string `json:"resume_run_id,omitempty"`
}

// startRunResponse reports whether the run was accepted
type startRunResponse struct {
	RunID    string `json:"run_id,omitempty"`
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

// HandleRuns handles requests to /api/checkin/runs
// POST: start or resume a run
// GET: list resumable runs
func (s *Server) HandleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleStartRun(w, r)
	case http.MethodGet:
		s.handleListResumable(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &req); err != nil {
			return
		}
	}

	runID, accepted, err := s.coordinator.StartRun(req.ResumeRunID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Errorw("Failed to start run", "resume_run_id", req.ResumeRunID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !accepted {
		writeJSON(w, http.StatusConflict, startRunResponse{
			Accepted: false,
			Message:  "a check-in run is already in progress",
		})
		return
	}

	s.logger.Infow("Check-in run accepted", "run_id", runID, "resumed", req.ResumeRunID != "")
	writeJSON(w, http.StatusAccepted, startRunResponse{RunID: runID, Accepted: true})
}

func (s *Server) handleListResumable(w http.ResponseWriter, r *http.Request) {
	runs, err := s.coordinator.ListResumable()
	if err != nil {
		s.logger.Errorw("Failed to list resumable runs", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// HandleRun handles requests to /api/checkin/runs/{id}
// GET: run detail with full ledger
func (s *Server) HandleRun(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	// An empty id ("/api/checkin/runs/") means the most recent run
	var runID string
	if parts := extractPathParts(r.URL.Path, "/api/checkin/runs/"); len(parts) > 0 {
		runID = parts[0]
	}

	detail, err := s.coordinator.GetRunDetail(runID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Errorw("Failed to get run detail", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// HandleStatus handles requests to /api/checkin/status
// GET: live engine status, falling back to the last persisted run
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	snap, err := s.coordinator.Status()
	if err != nil {
		s.logger.Errorw("Failed to read engine status", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// HandleHealth handles requests to /health
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	status := "ok"
	if err := s.db.Ping(); err != nil {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  status,
		"version": version.Version,
		"running": s.coordinator.Active(),
	})
}
