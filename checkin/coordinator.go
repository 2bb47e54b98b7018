package checkin

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/clubops/rollcall/errors"
	"github.com/clubops/rollcall/roster"
)

// Coordinator owns the run lifecycle. At most one run is active at a time;
// StartRun is the single entry point for both fresh runs and resumes, and
// rejects while a run is in flight rather than queueing.
type Coordinator struct {
	store     *Store
	directory roster.Directory
	executor  *Executor
	tracker   *Tracker
	logger    *zap.SugaredLogger

	active atomic.Bool
	wg     sync.WaitGroup

	rootCtx context.Context
	cancel  context.CancelFunc
}

// NewCoordinator creates a coordinator over the given store, directory,
// and executor
func NewCoordinator(store *Store, directory roster.Directory, executor *Executor, tracker *Tracker, logger *zap.SugaredLogger) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:     store,
		directory: directory,
		executor:  executor,
		tracker:   tracker,
		logger:    logger,
		rootCtx:   ctx,
		cancel:    cancel,
	}
}

// StartRun begins a new run, or resumes an existing one when resumeRunID is
// non-empty. Returns the run id and whether the request was accepted. A
// request is rejected, not queued, when another run is already active.
// Resume of an unknown run id fails before any state changes.
func (c *Coordinator) StartRun(resumeRunID string) (string, bool, error) {
	resume := resumeRunID != ""
	if resume {
		run, err := c.store.GetRun(resumeRunID)
		if err != nil {
			return "", false, err
		}
		if !run.Status.Resumable() {
			return "", false, errors.Newf("run %s has status %s and cannot be resumed", resumeRunID, run.Status)
		}
	}

	if !c.active.CompareAndSwap(false, true) {
		return "", false, nil
	}

	runID := resumeRunID
	if !resume {
		runID = NewRunID(time.Now())
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.active.Store(false)
		c.execute(c.rootCtx, runID, resume)
	}()

	return runID, true, nil
}

// execute drives one run from registry write to terminal write
func (c *Coordinator) execute(ctx context.Context, runID string, resume bool) {
	startStatus := RunStatusRunning
	message := "Fetching member directory"
	if resume {
		startStatus = RunStatusResuming
		message = "Resuming interrupted run"
	}

	c.tracker.Begin(runID, startStatus, message)
	if err := c.store.CreateOrUpdateRun(runID, startStatus, RunUpdate{StatusMessage: &message}); err != nil {
		c.logger.Errorw("Failed to write run start", "run_id", runID, "error", err)
	}

	accounts, err := c.directory.ListAccounts(ctx)
	if err != nil {
		c.failRun(runID, errors.Wrap(err, "failed to list accounts"))
		return
	}

	eligible, excluded := roster.Partition(accounts)
	c.logger.Infow("Candidate set assembled",
		"run_id", runID,
		"directory_size", len(accounts),
		"eligible", len(eligible),
		"excluded_ppv", excluded.PPV)

	var seed Aggregates
	if resume {
		eligible, seed, err = c.remainingAccounts(runID, eligible)
		if err != nil {
			c.failRun(runID, err)
			return
		}
		c.logger.Infow("Resume set reconstructed",
			"run_id", runID,
			"already_processed", seed.ProcessedMembers,
			"remaining", len(eligible))
	}

	total := seed.ProcessedMembers + len(eligible)
	c.tracker.SetPhase(RunStatusProcessing, "Processing members")
	c.tracker.SetTotals(total, seed.ProcessedMembers, seed.SuccessfulCheckins, excluded.PPV)

	processingMsg := "Processing members"
	progress := ProgressPercent(seed.ProcessedMembers, total)
	update := RunUpdate{
		TotalMembers:       &total,
		ProcessedMembers:   &seed.ProcessedMembers,
		SuccessfulCheckins: &seed.SuccessfulCheckins,
		ExcludedPPV:        &excluded.PPV,
		ProgressPercentage: &progress,
		StatusMessage:      &processingMsg,
	}
	if err := c.store.CreateOrUpdateRun(runID, RunStatusProcessing, update); err != nil {
		c.logger.Errorw("Failed to write processing status", "run_id", runID, "error", err)
	}

	result, err := c.executor.Run(ctx, runID, eligible)
	if err != nil {
		// Interrupted between accounts. The run row keeps its last
		// non-terminal status, so it stays resumable.
		c.logger.Warnw("Run interrupted before completion",
			"run_id", runID, "processed", result.Processed, "error", err)
		c.tracker.Fail("run interrupted: " + err.Error())
		return
	}

	c.completeRun(runID, seed, result)
}

// remainingAccounts reconstructs the resume work set: the fresh eligible
// set minus members a prior pass already touched, plus the ledger-derived
// aggregates that seed progress counters.
func (c *Coordinator) remainingAccounts(runID string, eligible []roster.Account) ([]roster.Account, Aggregates, error) {
	touched, err := c.store.TouchedMembers(runID)
	if err != nil {
		return nil, Aggregates{}, err
	}
	seed, err := c.store.RunAggregates(runID)
	if err != nil {
		return nil, Aggregates{}, err
	}

	remaining := make([]roster.Account, 0, len(eligible))
	for _, a := range eligible {
		if _, ok := touched[a.ID]; ok {
			continue
		}
		remaining = append(remaining, a)
	}
	return remaining, seed, nil
}

// completeRun writes the terminal completed state. The terminal write is
// retried once before giving up; the in-memory tracker completes either way.
func (c *Coordinator) completeRun(runID string, seed Aggregates, result Result) {
	processed := seed.ProcessedMembers + result.Processed
	successful := seed.SuccessfulCheckins + result.Successful
	message := fmt.Sprintf("Completed: %d members processed, %d check-ins recorded", processed, successful)

	c.tracker.SetTotals(processed, processed, successful, c.tracker.Snapshot().ExcludedPPV)
	c.tracker.Complete(message)

	progress := 100
	empty := ""
	update := RunUpdate{
		ProcessedMembers:   &processed,
		SuccessfulCheckins: &successful,
		ProgressPercentage: &progress,
		StatusMessage:      &message,
		CurrentMemberName:  &empty,
	}
	c.writeTerminal(runID, RunStatusCompleted, update)

	c.logger.Infow("Bulk check-in run completed",
		"run_id", runID,
		"processed", processed,
		"successful", successful,
		"failed", result.Failed)
}

// failRun writes the terminal failed state and mirrors it in the tracker
func (c *Coordinator) failRun(runID string, cause error) {
	c.logger.Errorw("Bulk check-in run failed", "run_id", runID, "error", cause)
	c.tracker.Fail(cause.Error())

	errMsg := cause.Error()
	c.writeTerminal(runID, RunStatusFailed, RunUpdate{ErrorMessage: &errMsg})
}

func (c *Coordinator) writeTerminal(runID string, status RunStatus, update RunUpdate) {
	err := c.store.CreateOrUpdateRun(runID, status, update)
	if err == nil {
		return
	}
	c.logger.Errorw("Terminal run write failed, retrying once",
		"run_id", runID, "status", status, "error", err)
	if err := c.store.CreateOrUpdateRun(runID, status, update); err != nil {
		c.logger.Errorw("Terminal run write failed permanently",
			"run_id", runID, "status", status, "error", err)
	}
}

// Status returns the current engine view: the live tracker while a run is
// active, otherwise the last persisted run with ledger-join aggregates,
// otherwise idle.
func (c *Coordinator) Status() (StatusSnapshot, error) {
	if c.active.Load() {
		return c.tracker.Snapshot(), nil
	}

	run, err := c.store.LatestRun()
	if err != nil {
		return StatusSnapshot{}, err
	}
	if run == nil {
		return StatusSnapshot{Status: "idle"}, nil
	}

	agg, err := c.store.RunAggregates(run.RunID)
	if err != nil {
		return StatusSnapshot{}, err
	}

	startedAt := run.StartedAt
	return StatusSnapshot{
		RunID:              run.RunID,
		Status:             string(run.Status),
		IsRunning:          false,
		Message:            run.StatusMessage,
		TotalMembers:       run.TotalMembers,
		ProcessedMembers:   agg.ProcessedMembers,
		SuccessfulCheckins: agg.SuccessfulCheckins,
		ExcludedPPV:        run.ExcludedPPV,
		ProgressPercentage: run.ProgressPercentage,
		StartedAt:          &startedAt,
		CompletedAt:        run.CompletedAt,
		Error:              run.ErrorMessage,
	}, nil
}

// Active reports whether a run is currently in flight
func (c *Coordinator) Active() bool {
	return c.active.Load()
}

// ListResumable returns interrupted and failed runs with ledger-derived
// progress
func (c *Coordinator) ListResumable() ([]*Run, error) {
	return c.store.ListResumableRuns()
}

// GetRunDetail returns a run with its full ledger. An empty run id means
// the most recently started run.
func (c *Coordinator) GetRunDetail(runID string) (*RunDetail, error) {
	if runID == "" {
		latest, err := c.store.LatestRun()
		if err != nil {
			return nil, err
		}
		if latest == nil {
			return nil, errors.NewNotFoundError("no runs recorded")
		}
		runID = latest.RunID
	}
	return c.store.GetRunDetail(runID)
}

// Close cancels any in-flight run and waits for its goroutine to finish.
// The interrupted run remains resumable from the ledger.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}
