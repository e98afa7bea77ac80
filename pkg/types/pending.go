package types

import "time"

// PendingRequest is the in-memory correlation record for flows that suspend
// waiting on an external decision: an IPC caller awaiting a response, or an
// email-choice callback awaiting a click. Owned by whichever subsystem
// created it (internal/worker, the email tool); never persisted.
type PendingRequest struct {
	Token      string
	Expires    time.Time
	OptionIDs  []string
	Resolved   bool
	Resolution string
	// Resolve is called exactly once, by whichever path observes the
	// decision first (explicit resolution or expiry).
	Resolve func(optionID string)
}
