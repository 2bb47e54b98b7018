// Package roster models the club's account directory and the eligibility
// rules deciding which accounts a bulk check-in run may touch.
package roster

import "context"

// Account is one directory record, as returned by the club management
// service. Classification fields are carried verbatim; interpretation
// happens in the eligibility filter.
type Account struct {
	ID            string `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	StatusMessage string `json:"status_message"`

	// Carried from the directory for diagnostics and future eligibility
	// rules; Classify decides on StatusMessage alone today.
	ContractTypes []int `json:"contract_types,omitempty"`
	UserType      int   `json:"user_type,omitempty"`
	Trial         bool  `json:"trial,omitempty"`
}

// Name returns the display name for the account
func (a Account) Name() string {
	switch {
	case a.FirstName != "" && a.LastName != "":
		return a.FirstName + " " + a.LastName
	case a.FirstName != "":
		return a.FirstName
	default:
		return a.LastName
	}
}

// Directory lists accounts with their eligibility attributes. It is read
// fresh at run start and again at resume time.
type Directory interface {
	ListAccounts(ctx context.Context) ([]Account, error)
}
