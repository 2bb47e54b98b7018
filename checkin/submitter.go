package checkin

import (
	"context"
	"time"
)

// Visit identifies where a presence submission is attributed
type Visit struct {
	ClubID int
	DoorID int
	Manual bool
}

// PresenceSubmitter records a single presence event for an account at the
// given time. Implementations must treat each call independently; the
// executor decides pairing and retry semantics.
type PresenceSubmitter interface {
	Submit(ctx context.Context, accountID string, at time.Time, visit Visit) error
}
