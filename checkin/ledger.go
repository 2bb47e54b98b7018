package checkin

import "time"

// LedgerStatus represents the per-member outcome within a run
type LedgerStatus string

const (
	LedgerStatusPending LedgerStatus = "pending"
	LedgerStatusSuccess LedgerStatus = "success"
	LedgerStatusPartial LedgerStatus = "partial"
	LedgerStatusFailed  LedgerStatus = "failed"
)

// Touched reports whether a ledger status marks the member as handled by a
// prior pass. Touched members are never revisited by resume, including
// failed ones: resume only covers members that were never reached at all.
func (s LedgerStatus) Touched() bool {
	switch s {
	case LedgerStatusSuccess, LedgerStatusPartial, LedgerStatusFailed:
		return true
	default:
		return false
	}
}

// LedgerEntry is one (run, member) attempt record, upserted in place as
// attempts are made. Invariant: SuccessCount <= CheckinCount <= 2.
type LedgerEntry struct {
	ID           int64        `json:"id"`
	RunID        string       `json:"run_id"`
	MemberID     string       `json:"member_id"`
	MemberName   string       `json:"member_name"`
	Timestamp    time.Time    `json:"checkin_timestamp"`
	CheckinCount int          `json:"checkin_count"`
	SuccessCount int          `json:"success_count"`
	Status       LedgerStatus `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// DeriveStatus maps attempt counts to the member-level status. One
// acknowledged attempt out of two is still success at the member level.
func DeriveStatus(checkinCount, successCount int) LedgerStatus {
	switch {
	case checkinCount == 0:
		return LedgerStatusPending
	case successCount > 0:
		return LedgerStatusSuccess
	default:
		return LedgerStatusFailed
	}
}
