package checkin

import (
	"database/sql"
	"strings"
	"time"

	"github.com/clubops/rollcall/errors"
)

// Store handles persistence of check-in runs and the per-member ledger
type Store struct {
	db *sql.DB
}

// NewStore creates a new check-in tracking store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RunUpdate carries a partial update for a run row. Nil fields are left
// untouched so progress writes never clobber counters they did not compute.
type RunUpdate struct {
	TotalMembers       *int
	ProcessedMembers   *int
	SuccessfulCheckins *int
	ExcludedPPV        *int
	ExcludedComp       *int
	ExcludedFrozen     *int
	CurrentMemberName  *string
	ProgressPercentage *int
	StatusMessage      *string
	ErrorMessage       *string
	Snapshot           *string
}

// CreateOrUpdateRun upserts a run row by run_id. Only the supplied fields
// are merged into an existing row. Setting a terminal status also stamps
// completed_at.
func (s *Store) CreateOrUpdateRun(runID string, status RunStatus, update RunUpdate) error {
	var exists bool
	err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM checkin_runs WHERE run_id = ?)", runID).Scan(&exists)
	if err != nil {
		return errors.Wrapf(err, "failed to check run %s", runID)
	}

	if !exists {
		return s.insertRun(runID, status, update)
	}
	return s.updateRun(runID, status, update)
}

func (s *Store) insertRun(runID string, status RunStatus, update RunUpdate) error {
	query := `
		INSERT INTO checkin_runs (
			run_id, status, started_at, completed_at,
			total_members, processed_members, successful_checkins,
			excluded_ppv, excluded_comp, excluded_frozen,
			current_member_name, progress_percentage,
			status_message, error_message, run_snapshot
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var completedAt interface{}
	if status.IsTerminal() {
		completedAt = time.Now()
	}

	_, err := s.db.Exec(query,
		runID,
		status,
		time.Now(),
		completedAt,
		intOrZero(update.TotalMembers),
		intOrZero(update.ProcessedMembers),
		intOrZero(update.SuccessfulCheckins),
		intOrZero(update.ExcludedPPV),
		intOrZero(update.ExcludedComp),
		intOrZero(update.ExcludedFrozen),
		stringOrEmpty(update.CurrentMemberName),
		intOrZero(update.ProgressPercentage),
		stringOrEmpty(update.StatusMessage),
		stringOrEmpty(update.ErrorMessage),
		stringOrEmpty(update.Snapshot),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create run %s", runID)
	}
	return nil
}

func (s *Store) updateRun(runID string, status RunStatus, update RunUpdate) error {
	setClauses := []string{"status = ?"}
	args := []interface{}{status}

	if status.IsTerminal() {
		setClauses = append(setClauses, "completed_at = ?")
		args = append(args, time.Now())
	}
	if update.TotalMembers != nil {
		setClauses = append(setClauses, "total_members = ?")
		args = append(args, *update.TotalMembers)
	}
	if update.ProcessedMembers != nil {
		setClauses = append(setClauses, "processed_members = ?")
		args = append(args, *update.ProcessedMembers)
	}
	if update.SuccessfulCheckins != nil {
		setClauses = append(setClauses, "successful_checkins = ?")
		args = append(args, *update.SuccessfulCheckins)
	}
	if update.ExcludedPPV != nil {
		setClauses = append(setClauses, "excluded_ppv = ?")
		args = append(args, *update.ExcludedPPV)
	}
	if update.ExcludedComp != nil {
		setClauses = append(setClauses, "excluded_comp = ?")
		args = append(args, *update.ExcludedComp)
	}
	if update.ExcludedFrozen != nil {
		setClauses = append(setClauses, "excluded_frozen = ?")
		args = append(args, *update.ExcludedFrozen)
	}
	if update.CurrentMemberName != nil {
		setClauses = append(setClauses, "current_member_name = ?")
		args = append(args, *update.CurrentMemberName)
	}
	if update.ProgressPercentage != nil {
		setClauses = append(setClauses, "progress_percentage = ?")
		args = append(args, *update.ProgressPercentage)
	}
	if update.StatusMessage != nil {
		setClauses = append(setClauses, "status_message = ?")
		args = append(args, *update.StatusMessage)
	}
	if update.ErrorMessage != nil {
		setClauses = append(setClauses, "error_message = ?")
		args = append(args, *update.ErrorMessage)
	}
	if update.Snapshot != nil {
		setClauses = append(setClauses, "run_snapshot = ?")
		args = append(args, *update.Snapshot)
	}

	args = append(args, runID)
	query := "UPDATE checkin_runs SET " + strings.Join(setClauses, ", ") + " WHERE run_id = ?"

	if _, err := s.db.Exec(query, args...); err != nil {
		return errors.Wrapf(err, "failed to update run %s", runID)
	}
	return nil
}

const runSelectColumns = `
	run_id, status, started_at, completed_at,
	total_members, processed_members, successful_checkins,
	excluded_ppv, excluded_comp, excluded_frozen,
	current_member_name, progress_percentage,
	status_message, error_message, run_snapshot
`

type runScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row runScanner) (*Run, error) {
	var run Run
	var completedAt sql.NullTime
	var currentMember, statusMessage, errorMessage, snapshot sql.NullString

	err := row.Scan(
		&run.RunID,
		&run.Status,
		&run.StartedAt,
		&completedAt,
		&run.TotalMembers,
		&run.ProcessedMembers,
		&run.SuccessfulCheckins,
		&run.ExcludedPPV,
		&run.ExcludedComp,
		&run.ExcludedFrozen,
		&currentMember,
		&run.ProgressPercentage,
		&statusMessage,
		&errorMessage,
		&snapshot,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.CurrentMemberName = currentMember.String
	run.StatusMessage = statusMessage.String
	run.ErrorMessage = errorMessage.String
	run.Snapshot = snapshot.String

	return &run, nil
}

// GetRun retrieves a run by ID
func (s *Store) GetRun(runID string) (*Run, error) {
	query := `SELECT ` + runSelectColumns + ` FROM checkin_runs WHERE run_id = ?`

	run, err := scanRun(s.db.QueryRow(query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("run not found: %s", runID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get run %s", runID)
	}
	return run, nil
}

// LatestRun returns the most recently started run, or nil when the runs
// table is empty. Used by the status reporter as the idle fallback.
func (s *Store) LatestRun() (*Run, error) {
	query := `SELECT ` + runSelectColumns + ` FROM checkin_runs ORDER BY started_at DESC LIMIT 1`

	run, err := scanRun(s.db.QueryRow(query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest run")
	}
	return run, nil
}

// Aggregates are the ledger-derived progress numbers for a run:
// distinct members touched and the sum of acknowledged submissions.
type Aggregates struct {
	ProcessedMembers   int `json:"processed_members"`
	SuccessfulCheckins int `json:"successful_checkins"`
}

// RunAggregates computes the authoritative progress for a run by joining
// against the ledger rather than trusting the possibly-stale run counters.
func (s *Store) RunAggregates(runID string) (Aggregates, error) {
	var agg Aggregates
	err := s.db.QueryRow(`
		SELECT COUNT(DISTINCT member_id), COALESCE(SUM(success_count), 0)
		FROM member_checkins
		WHERE run_id = ?
	`, runID).Scan(&agg.ProcessedMembers, &agg.SuccessfulCheckins)
	if err != nil {
		return Aggregates{}, errors.Wrapf(err, "failed to compute aggregates for run %s", runID)
	}
	return agg, nil
}

// ListResumableRuns returns runs that were interrupted or failed, each
// enriched with ledger-join aggregates in place of the stored counters.
func (s *Store) ListResumableRuns() ([]*Run, error) {
	query := `SELECT ` + runSelectColumns + `
		FROM checkin_runs
		WHERE status IN ('running', 'processing', 'resuming', 'failed')
		ORDER BY started_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list resumable runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan resumable run")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating resumable runs")
	}

	for _, run := range runs {
		agg, err := s.RunAggregates(run.RunID)
		if err != nil {
			return nil, err
		}
		run.ProcessedMembers = agg.ProcessedMembers
		run.SuccessfulCheckins = agg.SuccessfulCheckins
	}

	return runs, nil
}

// UpsertLedgerEntry records a member's attempt state within a run. One row
// per (run_id, member_id); subsequent writes for the same pair update in
// place, backed by the table's unique index.
func (s *Store) UpsertLedgerEntry(entry *LedgerEntry) error {
	query := `
		INSERT INTO member_checkins (
			run_id, member_id, member_name, checkin_timestamp,
			checkin_count, success_count, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, member_id) DO UPDATE SET
			member_name = excluded.member_name,
			checkin_timestamp = excluded.checkin_timestamp,
			checkin_count = excluded.checkin_count,
			success_count = excluded.success_count,
			status = excluded.status,
			error_message = excluded.error_message
	`

	errorMessage := sql.NullString{String: entry.ErrorMessage, Valid: entry.ErrorMessage != ""}

	_, err := s.db.Exec(query,
		entry.RunID,
		entry.MemberID,
		entry.MemberName,
		entry.Timestamp,
		entry.CheckinCount,
		entry.SuccessCount,
		entry.Status,
		errorMessage,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to upsert ledger entry for member %s in run %s", entry.MemberID, entry.RunID)
	}
	return nil
}

// TouchedMembers returns the member ids a prior pass already handled
// (success, partial, or failed). Resume uses this purely as an exclusion
// set; pending rows do not count as touched.
func (s *Store) TouchedMembers(runID string) (map[string]struct{}, error) {
	rows, err := s.db.Query(`
		SELECT member_id
		FROM member_checkins
		WHERE run_id = ? AND status IN ('success', 'partial', 'failed')
	`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load touched members for run %s", runID)
	}
	defer rows.Close()

	touched := make(map[string]struct{})
	for rows.Next() {
		var memberID string
		if err := rows.Scan(&memberID); err != nil {
			return nil, errors.Wrap(err, "failed to scan touched member")
		}
		touched[memberID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating touched members")
	}

	return touched, nil
}

// ListLedgerEntries returns all ledger rows for a run in insertion order
func (s *Store) ListLedgerEntries(runID string) ([]*LedgerEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, member_id, member_name, checkin_timestamp,
		       checkin_count, success_count, status, error_message
		FROM member_checkins
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list ledger entries for run %s", runID)
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		var entry LedgerEntry
		var errorMessage sql.NullString
		err := rows.Scan(
			&entry.ID,
			&entry.RunID,
			&entry.MemberID,
			&entry.MemberName,
			&entry.Timestamp,
			&entry.CheckinCount,
			&entry.SuccessCount,
			&entry.Status,
			&errorMessage,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan ledger entry")
		}
		entry.ErrorMessage = errorMessage.String
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating ledger entries")
	}

	return entries, nil
}

// RunDetail is a run row plus its full ledger and authoritative aggregates
type RunDetail struct {
	Run        *Run           `json:"run"`
	Entries    []*LedgerEntry `json:"member_checkins"`
	Aggregates Aggregates     `json:"aggregates"`
}

// GetRunDetail returns the run row with all of its ledger rows
func (s *Store) GetRunDetail(runID string) (*RunDetail, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}

	entries, err := s.ListLedgerEntries(runID)
	if err != nil {
		return nil, err
	}

	agg, err := s.RunAggregates(runID)
	if err != nil {
		return nil, err
	}

	return &RunDetail{Run: run, Entries: entries, Aggregates: agg}, nil
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func stringOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
