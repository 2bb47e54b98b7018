// Package checkin implements the bulk check-in orchestration engine:
// the run registry, the per-member ledger, the executor that drives paired
// presence submissions, and the resume coordinator that reconstructs
// interrupted runs from the ledger.
package checkin

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of a bulk check-in run
type RunStatus string

const (
	RunStatusRunning    RunStatus = "running"
	RunStatusProcessing RunStatus = "processing"
	RunStatusResuming   RunStatus = "resuming"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"

	// RunStatusPaused is a declared status value with no transition into or
	// out of it. Reserved as an extension point; nothing sets it today.
	RunStatusPaused RunStatus = "paused"
)

// IsValidStatus returns true if the status string is a valid RunStatus
func IsValidStatus(s string) bool {
	switch RunStatus(s) {
	case RunStatusRunning, RunStatusProcessing, RunStatusResuming,
		RunStatusCompleted, RunStatusFailed, RunStatusPaused:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for statuses that end a run
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Resumable returns true for statuses a run can be resumed from. A run left
// in running/processing/resuming was interrupted without a terminal write.
func (s RunStatus) Resumable() bool {
	switch s {
	case RunStatusRunning, RunStatusProcessing, RunStatusResuming, RunStatusFailed:
		return true
	default:
		return false
	}
}

// Run is one orchestration attempt over a candidate account set.
// Counters mirror the checkin_runs row; the ledger join, not these
// counters, is the authoritative progress source for resume.
type Run struct {
	RunID              string     `json:"run_id"`
	Status             RunStatus  `json:"status"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	TotalMembers       int        `json:"total_members"`
	ProcessedMembers   int        `json:"processed_members"`
	SuccessfulCheckins int        `json:"successful_checkins"`
	ExcludedPPV        int        `json:"excluded_ppv"`
	ExcludedComp       int        `json:"excluded_comp"`
	ExcludedFrozen     int        `json:"excluded_frozen"`
	CurrentMemberName  string     `json:"current_member_name,omitempty"`
	ProgressPercentage int        `json:"progress_percentage"`
	StatusMessage      string     `json:"status_message,omitempty"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	Snapshot           string     `json:"run_snapshot,omitempty"` // opaque JSON, diagnostics only
}

// NewRunID generates a time-derived run identifier with a random suffix.
// Uniqueness is the only requirement; the timestamp prefix keeps ids
// sortable and human-readable in the runs table.
func NewRunID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("run-%s-%s", now.Format("20060102-150405"), suffix)
}

// ProgressPercent derives a 0-100 progress value
func ProgressPercent(processed, total int) int {
	if total <= 0 {
		return 0
	}
	pct := processed * 100 / total
	if pct > 100 {
		pct = 100
	}
	return pct
}
