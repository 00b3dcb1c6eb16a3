// Package flow implements the approval-gated decision flow for a new
// project request: a pure state deriver over the event log and a
// coordinator exposing the guarded operations that append to it.
package flow

// Status is the derived position of a flow in its decision lifecycle.
// The chain is strict: started → proposal_created → awaiting_decision →
// completed, and completed is terminal.
type Status string

const (
	StatusStarted          Status = "started"
	StatusProposalCreated  Status = "proposal_created"
	StatusAwaitingDecision Status = "awaiting_decision"
	StatusCompleted        Status = "completed"
)

// statusRank orders statuses for monotonicity. Derivation only ever moves
// forward in rank, regardless of how events are interleaved.
var statusRank = map[Status]int{
	StatusStarted:          1,
	StatusProposalCreated:  2,
	StatusAwaitingDecision: 3,
	StatusCompleted:        4,
}

// CompletionStatus refines a completed flow.
type CompletionStatus string

const (
	CompletionReady     CompletionStatus = "ready"
	CompletionCancelled CompletionStatus = "cancelled"
)

// State is a derived projection of one flow. It is never persisted; any
// cached copy must be reproducible by re-deriving from the log.
type State struct {
	FlowID string `json:"flowId"`
	Status Status `json:"status"`

	// CompletionStatus is empty until the flow completes.
	CompletionStatus CompletionStatus `json:"completionStatus,omitempty"`

	// StylePickerActive is orthogonal to Status: it tracks whether the
	// user opened the style picker while the decision is pending.
	StylePickerActive bool `json:"stylePickerActive"`

	// SelectedStyle is the style intent chosen through the picker, if any.
	SelectedStyle string `json:"selectedStyle,omitempty"`

	// Decision is the payload of the governing decision-request event.
	// When both a dedicated decision_requested event and a legacy alias
	// exist, this is always the dedicated event's payload.
	Decision map[string]any `json:"decision,omitempty"`
}
