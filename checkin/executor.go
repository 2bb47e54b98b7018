package checkin

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clubops/rollcall/roster"
)

// pairGapMinutes separates the two submissions of a pass on the wire.
// Both calls are issued back to back; only the recorded timestamps differ.
const pairGapMinutes = 1

// Executor drives the sequential pass over the eligible account set,
// submitting the paired presence events and keeping the ledger, tracker,
// and run registry current as it goes.
type Executor struct {
	store     *Store
	submitter PresenceSubmitter
	tracker   *Tracker
	logger    *zap.SugaredLogger

	visit         Visit
	limiter       *rate.Limiter
	writeInterval int // registry progress write cadence, in accounts

	now func() time.Time
}

// ExecutorOptions configures an Executor
type ExecutorOptions struct {
	Visit Visit
	// PaceDelay is the minimum spacing between account passes. Zero
	// disables pacing.
	PaceDelay time.Duration
	// ProgressWriteInterval is how many accounts to process between
	// best-effort registry writes. Values below 1 are clamped to 1.
	ProgressWriteInterval int
}

// NewExecutor creates an executor over the given store and submitter
func NewExecutor(store *Store, submitter PresenceSubmitter, tracker *Tracker, logger *zap.SugaredLogger, opts ExecutorOptions) *Executor {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.PaceDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.PaceDelay), 1)
	}
	interval := opts.ProgressWriteInterval
	if interval < 1 {
		interval = 1
	}
	return &Executor{
		store:         store,
		submitter:     submitter,
		tracker:       tracker,
		logger:        logger,
		visit:         opts.Visit,
		limiter:       limiter,
		writeInterval: interval,
		now:           time.Now,
	}
}

// Result summarizes an executor pass
type Result struct {
	Processed  int
	Successful int
	Failed     int
}

// Run processes the accounts sequentially. Each account gets exactly one
// logical pass of two presence submissions; a failure for one account is
// recorded and never aborts the pass. Context cancellation stops between
// accounts, leaving the run resumable from the ledger.
func (e *Executor) Run(ctx context.Context, runID string, accounts []roster.Account) (Result, error) {
	var result Result

	for i, account := range accounts {
		if err := ctx.Err(); err != nil {
			e.logger.Warnw("Check-in pass interrupted",
				"run_id", runID,
				"processed", result.Processed,
				"remaining", len(accounts)-i)
			return result, err
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return result, err
		}

		e.tracker.SetCurrentMember(account.Name())

		successes := e.processAccount(ctx, runID, account)
		result.Processed++
		result.Successful += successes
		if successes == 0 {
			result.Failed++
		}
		e.tracker.RecordAccount(successes)

		if (i+1)%e.writeInterval == 0 || i == len(accounts)-1 {
			e.writeProgress(runID)
		}
	}

	return result, nil
}

// processAccount runs one account's paired submissions and upserts the
// ledger around them. Returns the number of acknowledged submissions.
func (e *Executor) processAccount(ctx context.Context, runID string, account roster.Account) int {
	start := e.now()
	entry := &LedgerEntry{
		RunID:      runID,
		MemberID:   account.ID,
		MemberName: account.Name(),
		Timestamp:  start,
		Status:     LedgerStatusPending,
	}
	if err := e.store.UpsertLedgerEntry(entry); err != nil {
		e.logger.Errorw("Failed to record pending ledger entry",
			"run_id", runID, "member_id", account.ID, "error", err)
	}

	// Each attempt is recorded before the next one starts. A crash between
	// the two attempts then leaves a touched row, so resume never replays
	// a pair the account already partly received.
	times := [2]time.Time{start, start.Add(pairGapMinutes * time.Minute)}
	var lastErr error
	for _, at := range times {
		entry.CheckinCount++
		if err := e.submitter.Submit(ctx, account.ID, at, e.visit); err != nil {
			lastErr = err
			e.logger.Warnw("Presence submission failed",
				"run_id", runID,
				"member_id", account.ID,
				"member_name", account.Name(),
				"attempt", entry.CheckinCount,
				"error", err)
		} else {
			entry.SuccessCount++
		}

		entry.Status = DeriveStatus(entry.CheckinCount, entry.SuccessCount)
		if entry.Status == LedgerStatusSuccess {
			entry.ErrorMessage = ""
		} else if lastErr != nil {
			entry.ErrorMessage = lastErr.Error()
		}
		if err := e.store.UpsertLedgerEntry(entry); err != nil {
			e.logger.Errorw("Failed to record attempt",
				"run_id", runID,
				"member_id", account.ID,
				"attempt", entry.CheckinCount,
				"error", err)
		}
	}

	return entry.SuccessCount
}

// writeProgress persists the tracker's view into the run registry. Best
// effort: a failed write is logged and the pass continues, since the
// ledger remains the authoritative record.
func (e *Executor) writeProgress(runID string) {
	snap := e.tracker.Snapshot()

	snapshotJSON, err := json.Marshal(snap)
	if err != nil {
		e.logger.Errorw("Failed to marshal run snapshot", "run_id", runID, "error", err)
		snapshotJSON = []byte("{}")
	}
	snapshot := string(snapshotJSON)

	update := RunUpdate{
		ProcessedMembers:   &snap.ProcessedMembers,
		SuccessfulCheckins: &snap.SuccessfulCheckins,
		CurrentMemberName:  &snap.CurrentMember,
		ProgressPercentage: &snap.ProgressPercentage,
		StatusMessage:      &snap.Message,
		Snapshot:           &snapshot,
	}
	if err := e.store.CreateOrUpdateRun(runID, RunStatus(snap.Status), update); err != nil {
		e.logger.Errorw("Failed to write run progress", "run_id", runID, "error", err)
	}
}
