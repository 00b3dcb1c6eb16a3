package flow

import (
	"fmt"
)

// GuardViolation reports a coordinator operation invoked outside its valid
// state. It is a caller error: surfaced synchronously, never retried, and
// carries enough detail to classify programmatically.
type GuardViolation struct {
	// Action is the attempted operation ("start", "proceed", "cancel",
	// "change_style", "select_style").
	Action string

	// State names the status the flow was in, or "none" when no flow was
	// ever started.
	State string

	// Reason is the human-readable guard message.
	Reason string
}

// Error implements the error interface.
func (e *GuardViolation) Error() string {
	return fmt.Sprintf("guard violation: %s (action=%s, state=%s)", e.Reason, e.Action, e.State)
}

// noActiveFlow is the guard for operations that need a started flow.
func noActiveFlow(action string) *GuardViolation {
	return &GuardViolation{
		Action: action,
		State:  "none",
		Reason: "No active flow",
	}
}

// wrongStatus is the guard for operations invoked in the wrong status.
func wrongStatus(action string, current Status) *GuardViolation {
	return &GuardViolation{
		Action: action,
		State:  string(current),
		Reason: fmt.Sprintf("Cannot handle action in status %s", current),
	}
}
