// Package domain – connection lifecycle.
//
// This file defines the connection-request state machine: the status
// constants and the table of allowed transitions. The repository layer
// performs every transition as a conditional write keyed on the expected
// current status, so two processes racing on the same connection cannot both
// win; callers translate a lost race into a stale-state error.
package domain

// Connection request lifecycle states.
//
//	INITIATED → PENDING → {ACCEPTED, REJECTED}
//	ACCEPTED  → REMOVED
//	REJECTED  → PENDING (re-request) | BLOCKED
//	BLOCKED   → PENDING (manual unblock)
//	REMOVED   → PENDING (re-request)
const (
	StatusInitiated = "initiated"
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusRemoved   = "removed"
	StatusBlocked   = "blocked"
)

// transitions lists the allowed next states per current state.
var transitions = map[string][]string{
	StatusInitiated: {StatusPending},
	StatusPending:   {StatusAccepted, StatusRejected},
	StatusAccepted:  {StatusRemoved},
	StatusRejected:  {StatusPending, StatusBlocked},
	StatusBlocked:   {StatusPending},
	StatusRemoved:   {StatusPending},
}

// CanTransition reports whether moving from one status to the next is a
// legal state-machine step.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// BlocksNewRequest reports whether an existing row in this status forbids a
// fresh request for the same pair. A pending or accepted connection makes a
// second request a duplicate; a blocked pair refuses requests until
// unblocked. Rejected and removed rows may be resurrected, as may an
// initiated row, which only persists when a writer crashed before the
// advance to pending.
func BlocksNewRequest(status string) bool {
	switch status {
	case StatusPending, StatusAccepted, StatusBlocked:
		return true
	}
	return false
}
