package checkin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clubops/rollcall/errors"
	"github.com/clubops/rollcall/internal/testutil"
	"github.com/clubops/rollcall/roster"
)

type fakeDirectory struct {
	accounts []roster.Account
	err      error
}

func (f *fakeDirectory) ListAccounts(ctx context.Context) ([]roster.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.accounts, nil
}

func newTestCoordinator(t *testing.T, store *Store, directory roster.Directory, submitter PresenceSubmitter) *Coordinator {
	t.Helper()
	tracker := NewTracker()
	exec := NewExecutor(store, submitter, tracker, zap.NewNop().Sugar(), ExecutorOptions{
		Visit:                 Visit{ClubID: 7, DoorID: 3, Manual: true},
		ProgressWriteInterval: 1,
	})
	coord := NewCoordinator(store, directory, exec, tracker, zap.NewNop().Sugar())
	t.Cleanup(coord.Close)
	return coord
}

func waitForTerminal(t *testing.T, store *Store, runID string) *Run {
	t.Helper()
	var run *Run
	require.Eventually(t, func() bool {
		r, err := store.GetRun(runID)
		if err != nil {
			return false
		}
		run = r
		return run.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond, "run %s never reached a terminal status", runID)
	return run
}

func waitForIdle(t *testing.T, coord *Coordinator) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !coord.Active()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCoordinatorRunsToCompletion(t *testing.T) {
	store := NewStore(testutil.SetupTestDB(t))
	directory := &fakeDirectory{accounts: []roster.Account{
		{ID: "m1", FirstName: "Ana", StatusMessage: "Active"},
		{ID: "m2", FirstName: "Bo", StatusMessage: "Day Pass"},
		{ID: "m3", FirstName: "Cy", StatusMessage: ""},
	}}
	submitter := newFakeSubmitter()
	coord := newTestCoordinator(t, store, directory, submitter)

	runID, accepted, err := coord.StartRun("")
	require.NoError(t, err)
	require.True(t, accepted)
	require.NotEmpty(t, runID)

	run := waitForTerminal(t, store, runID)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.TotalMembers)
	assert.Equal(t, 2, run.ProcessedMembers)
	assert.Equal(t, 4, run.SuccessfulCheckins)
	assert.Equal(t, 1, run.ExcludedPPV)
	assert.Equal(t, 100, run.ProgressPercentage)
	assert.NotNil(t, run.CompletedAt)

	// The PPV account never received a submission
	assert.Empty(t, submitter.callsFor("m2"))
	assert.Len(t, submitter.callsFor("m1"), 2)
	assert.Len(t, submitter.callsFor("m3"), 2)
}

func TestCoordinatorRejectsConcurrentRuns(t *testing.T) {
	store := NewStore(testutil.SetupTestDB(t))
	directory := &fakeDirectory{accounts: []roster.Account{
		{ID: "m1"}, {ID: "m2"}, {ID: "m3"},
	}}

	gate := make(chan struct{})
	submitter := newFakeSubmitter()
	submitter.onCall = func(string) { <-gate }
	coord := newTestCoordinator(t, store, directory, submitter)

	runID, accepted, err := coord.StartRun("")
	require.NoError(t, err)
	require.True(t, accepted)

	require.Eventually(t, coord.Active, 5*time.Second, 10*time.Millisecond)

	// Second request while the first is in flight is rejected, not queued
	otherID, accepted, err := coord.StartRun("")
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Empty(t, otherID)

	close(gate)
	run := waitForTerminal(t, store, runID)
	assert.Equal(t, RunStatusCompleted, run.Status)

	// Once the slot frees, a new run is accepted again
	waitForIdle(t, coord)
	_, accepted, err = coord.StartRun("")
	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestCoordinatorResumeSkipsTouchedMembers(t *testing.T) {
	store := NewStore(testutil.SetupTestDB(t))

	// A prior pass got through m1 (success) and m2 (failed) before dying
	runID := "run-20250101-010101-deadbeef"
	require.NoError(t, store.CreateOrUpdateRun(runID, RunStatusProcessing, RunUpdate{}))
	seedLedger(t, store, runID, "m1", 2, 2, LedgerStatusSuccess)
	seedLedger(t, store, runID, "m2", 2, 0, LedgerStatusFailed)

	// The directory is read fresh at resume: m4 joined since the first pass
	directory := &fakeDirectory{accounts: []roster.Account{
		{ID: "m1"}, {ID: "m2"}, {ID: "m3"}, {ID: "m4"},
	}}
	submitter := newFakeSubmitter()
	coord := newTestCoordinator(t, store, directory, submitter)

	resumedID, accepted, err := coord.StartRun(runID)
	require.NoError(t, err)
	require.True(t, accepted)
	assert.Equal(t, runID, resumedID, "resume continues under the same run id")

	run := waitForTerminal(t, store, runID)
	assert.Equal(t, RunStatusCompleted, run.Status)

	// Touched members were not retried, failed ones included
	assert.Empty(t, submitter.callsFor("m1"))
	assert.Empty(t, submitter.callsFor("m2"))
	assert.Len(t, submitter.callsFor("m3"), 2)
	assert.Len(t, submitter.callsFor("m4"), 2)

	// Progress is seeded from the prior pass's ledger
	assert.Equal(t, 4, run.TotalMembers)
	assert.Equal(t, 4, run.ProcessedMembers)
	assert.Equal(t, 6, run.SuccessfulCheckins)

	// Still one ledger row per member across both passes
	entries, err := store.ListLedgerEntries(runID)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestCoordinatorResumeUnknownRunFailsFast(t *testing.T) {
	store := NewStore(testutil.SetupTestDB(t))
	directory := &fakeDirectory{accounts: []roster.Account{{ID: "m1"}}}
	coord := newTestCoordinator(t, store, directory, newFakeSubmitter())

	_, accepted, err := coord.StartRun("run-does-not-exist")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
	assert.False(t, accepted)

	// The failed resume did not consume the writer slot
	_, accepted, err = coord.StartRun("")
	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestCoordinatorResumeRejectsCompletedRun(t *testing.T) {
	store := NewStore(testutil.SetupTestDB(t))
	runID := "run-20250101-010101-cafecafe"
	require.NoError(t, store.CreateOrUpdateRun(runID, RunStatusCompleted, RunUpdate{}))

	coord := newTestCoordinator(t, store, &fakeDirectory{}, newFakeSubmitter())

	_, accepted, err := coord.StartRun(runID)
	require.Error(t, err)
	assert.False(t, accepted)
}

func TestCoordinatorDirectoryFailureFailsRun(t *testing.T) {
	store := NewStore(testutil.SetupTestDB(t))
	directory := &fakeDirectory{err: errors.New("clubhub unreachable")}
	coord := newTestCoordinator(t, store, directory, newFakeSubmitter())

	runID, accepted, err := coord.StartRun("")
	require.NoError(t, err)
	require.True(t, accepted)

	run := waitForTerminal(t, store, runID)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "clubhub unreachable")

	// The failed run is offered for resume
	waitForIdle(t, coord)
	resumable, err := coord.ListResumable()
	require.NoError(t, err)
	require.Len(t, resumable, 1)
	assert.Equal(t, runID, resumable[0].RunID)
}

func TestCoordinatorStatusIdleWithoutRuns(t *testing.T) {
	store := NewStore(testutil.SetupTestDB(t))
	coord := newTestCoordinator(t, store, &fakeDirectory{}, newFakeSubmitter())

	snap, err := coord.Status()
	require.NoError(t, err)
	assert.Equal(t, "idle", snap.Status)
	assert.False(t, snap.IsRunning)
}

func TestCoordinatorStatusFallsBackToLastRun(t *testing.T) {
	store := NewStore(testutil.SetupTestDB(t))
	directory := &fakeDirectory{accounts: []roster.Account{{ID: "m1"}}}
	coord := newTestCoordinator(t, store, directory, newFakeSubmitter())

	runID, accepted, err := coord.StartRun("")
	require.NoError(t, err)
	require.True(t, accepted)

	waitForTerminal(t, store, runID)
	waitForIdle(t, coord)

	snap, err := coord.Status()
	require.NoError(t, err)
	assert.Equal(t, runID, snap.RunID)
	assert.Equal(t, string(RunStatusCompleted), snap.Status)
	assert.False(t, snap.IsRunning)
	assert.Equal(t, 1, snap.ProcessedMembers)
	assert.Equal(t, 2, snap.SuccessfulCheckins)
}

func TestCoordinatorCloseLeavesRunResumable(t *testing.T) {
	store := NewStore(testutil.SetupTestDB(t))
	directory := &fakeDirectory{accounts: []roster.Account{
		{ID: "m1"}, {ID: "m2"}, {ID: "m3"},
	}}

	submitter := newFakeSubmitter()
	submitter.block = make(chan struct{})
	coord := newTestCoordinator(t, store, directory, submitter)

	runID, accepted, err := coord.StartRun("")
	require.NoError(t, err)
	require.True(t, accepted)
	require.Eventually(t, coord.Active, 5*time.Second, 10*time.Millisecond)

	// Shutdown while a submission is in flight. Cancellation unblocks the
	// submitter and the run stops without a terminal write.
	coord.Close()

	run, err := store.GetRun(runID)
	require.NoError(t, err)
	assert.True(t, run.Status.Resumable(), "an interrupted run must stay resumable, got %s", run.Status)
}
