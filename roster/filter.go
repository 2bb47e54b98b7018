package roster

import "strings"

// ExclusionReason buckets why an account was excluded from a run
type ExclusionReason string

const (
	// ReasonPPV marks pay-per-visit billing classifications. Submitting a
	// presence event for these would misrepresent billable usage.
	ReasonPPV ExclusionReason = "ppv"
	// ReasonOther is reserved for future exclusion rules
	ReasonOther ExclusionReason = "other"
)

// ppvSynonyms are the classification phrases that mark pay-per-visit
// billing. Matching is a case-insensitive substring check against the
// account's status message.
var ppvSynonyms = []string{
	"pay per visit",
	"ppv",
	"day pass",
	"guest pass",
}

// Decision is the outcome of classifying one account
type Decision struct {
	Eligible bool
	Reason   ExclusionReason // set only when not eligible
}

// Classify decides whether an account may receive presence submissions.
//
// An account is excluded only when its classification indicates
// pay-per-visit billing. Every other classification, including
// complimentary, staff, frozen, past-due, and good-standing, is included.
// A missing or blank classification defaults to include: silently dropping
// an account from the run is a worse failure mode than an extra submission.
func Classify(a Account) Decision {
	status := strings.ToLower(a.StatusMessage)
	if status == "" {
		return Decision{Eligible: true}
	}

	for _, synonym := range ppvSynonyms {
		if strings.Contains(status, synonym) {
			return Decision{Eligible: false, Reason: ReasonPPV}
		}
	}

	return Decision{Eligible: true}
}

// ExclusionCounts tallies excluded accounts by reason bucket
type ExclusionCounts struct {
	PPV   int
	Other int
}

// Partition splits accounts into the eligible candidate set and exclusion
// counts. Order of the eligible set follows directory order; the executor
// processes it as yielded.
func Partition(accounts []Account) ([]Account, ExclusionCounts) {
	eligible := make([]Account, 0, len(accounts))
	var excluded ExclusionCounts

	for _, a := range accounts {
		d := Classify(a)
		if d.Eligible {
			eligible = append(eligible, a)
			continue
		}
		switch d.Reason {
		case ReasonPPV:
			excluded.PPV++
		default:
			excluded.Other++
		}
	}

	return eligible, excluded
}
