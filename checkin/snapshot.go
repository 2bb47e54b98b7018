package checkin

import (
	"sync"
	"time"
)

// StatusSnapshot is the point-in-time view of the engine served by the
// status endpoint. While a run is active it reflects live in-memory
// progress; when idle it is reconstructed from the last persisted run.
type StatusSnapshot struct {
	RunID              string     `json:"run_id,omitempty"`
	Status             string     `json:"status"`
	IsRunning          bool       `json:"is_running"`
	Message            string     `json:"message,omitempty"`
	CurrentMember      string     `json:"current_member,omitempty"`
	TotalMembers       int        `json:"total_members"`
	ProcessedMembers   int        `json:"processed_members"`
	SuccessfulCheckins int        `json:"successful_checkins"`
	ExcludedPPV        int        `json:"excluded_ppv"`
	ProgressPercentage int        `json:"progress_percentage"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	Error              string     `json:"error,omitempty"`
}

// Tracker holds the live progress of the run in flight. All mutation goes
// through its methods under the mutex; Snapshot hands out copies, so
// readers never observe a half-updated view.
type Tracker struct {
	mu   sync.Mutex
	snap StatusSnapshot
}

// NewTracker creates an idle tracker
func NewTracker() *Tracker {
	return &Tracker{snap: StatusSnapshot{Status: "idle"}}
}

// Begin resets the tracker for a new or resumed run
func (t *Tracker) Begin(runID string, status RunStatus, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.snap = StatusSnapshot{
		RunID:     runID,
		Status:    string(status),
		IsRunning: true,
		Message:   message,
		StartedAt: &now,
	}
}

// SetPhase updates the lifecycle status and message without touching counters
func (t *Tracker) SetPhase(status RunStatus, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Status = string(status)
	t.snap.Message = message
}

// SetTotals records the candidate set size and exclusion counts, and seeds
// progress counters. Resume passes the prior pass's aggregates as the seed.
func (t *Tracker) SetTotals(total, processed, successful, excludedPPV int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.TotalMembers = total
	t.snap.ProcessedMembers = processed
	t.snap.SuccessfulCheckins = successful
	t.snap.ExcludedPPV = excludedPPV
	t.snap.ProgressPercentage = ProgressPercent(processed, total)
}

// SetCurrentMember records the account currently being processed
func (t *Tracker) SetCurrentMember(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.CurrentMember = name
}

// RecordAccount advances progress after one account's pass finished
func (t *Tracker) RecordAccount(successes int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.ProcessedMembers++
	t.snap.SuccessfulCheckins += successes
	t.snap.ProgressPercentage = ProgressPercent(t.snap.ProcessedMembers, t.snap.TotalMembers)
}

// Complete marks the run finished
func (t *Tracker) Complete(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.snap.Status = string(RunStatusCompleted)
	t.snap.IsRunning = false
	t.snap.Message = message
	t.snap.CurrentMember = ""
	t.snap.CompletedAt = &now
}

// Fail marks the run failed with the causing error
func (t *Tracker) Fail(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.snap.Status = string(RunStatusFailed)
	t.snap.IsRunning = false
	t.snap.Error = message
	t.snap.CurrentMember = ""
	t.snap.CompletedAt = &now
}

// Snapshot returns a copy of the current view
func (t *Tracker) Snapshot() StatusSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}
