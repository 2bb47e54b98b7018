package checkin

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRunIDFormat(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	id := NewRunID(now)

	assert.True(t, strings.HasPrefix(id, "run-20250314-092653-"), "got %s", id)
	assert.Len(t, id, len("run-20250314-092653-")+8)

	// Two ids generated at the same instant still differ
	assert.NotEqual(t, id, NewRunID(now))
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, RunStatusCompleted.IsTerminal())
	assert.True(t, RunStatusFailed.IsTerminal())
	assert.False(t, RunStatusProcessing.IsTerminal())
	assert.False(t, RunStatusPaused.IsTerminal())

	assert.True(t, RunStatusRunning.Resumable())
	assert.True(t, RunStatusProcessing.Resumable())
	assert.True(t, RunStatusResuming.Resumable())
	assert.True(t, RunStatusFailed.Resumable())
	assert.False(t, RunStatusCompleted.Resumable())
	assert.False(t, RunStatusPaused.Resumable())

	assert.True(t, IsValidStatus("processing"))
	assert.True(t, IsValidStatus("paused"))
	assert.False(t, IsValidStatus("cancelled"))
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0, ProgressPercent(0, 0))
	assert.Equal(t, 0, ProgressPercent(5, 0))
	assert.Equal(t, 50, ProgressPercent(1, 2))
	assert.Equal(t, 100, ProgressPercent(2, 2))
	assert.Equal(t, 100, ProgressPercent(3, 2))
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, LedgerStatusPending, DeriveStatus(0, 0))
	assert.Equal(t, LedgerStatusSuccess, DeriveStatus(2, 2))
	assert.Equal(t, LedgerStatusSuccess, DeriveStatus(2, 1), "one acknowledged attempt is enough")
	assert.Equal(t, LedgerStatusFailed, DeriveStatus(2, 0))
}

func TestLedgerStatusTouched(t *testing.T) {
	assert.True(t, LedgerStatusSuccess.Touched())
	assert.True(t, LedgerStatusPartial.Touched())
	assert.True(t, LedgerStatusFailed.Touched())
	assert.False(t, LedgerStatusPending.Touched())
}
