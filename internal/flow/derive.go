package flow

import (
	"github.com/fyrsmithlabs/projectd/internal/events"
)

// Derive replays an ordered event sequence into the current state of one
// flow. It is a pure function: no I/O, no hidden state, identical input
// always yields identical output. Returns nil unless a started event
// exists for the flow id.
func Derive(flowID string, evs []events.Event) *State {
	st := &State{FlowID: flowID}
	sawStart := false
	sawDedicatedDecision := false

	for _, e := range evs {
		id, ok := events.FlowIDOf(e)
		if !ok || id != flowID {
			continue
		}
		cls, ok := events.Classify(e)
		if !ok {
			continue
		}

		switch cls.Canonical {
		case events.TypeStarted:
			sawStart = true
			advance(st, StatusStarted)

		case events.TypeProposalCreated:
			advance(st, StatusProposalCreated)

		case events.TypeDecisionRequested:
			advance(st, StatusAwaitingDecision)
			// The dedicated type's payload is authoritative regardless of
			// log position; a legacy alias only fills the gap when no
			// dedicated event exists anywhere in the sequence.
			if cls.Authoritative {
				st.Decision = e.Payload
				sawDedicatedDecision = true
			} else if !sawDedicatedDecision {
				st.Decision = e.Payload
			}

		case events.TypeStyleSelectionRequested:
			st.StylePickerActive = true

		case events.TypeStyleSelected:
			st.StylePickerActive = false
			if style, ok := e.StringPayload("style"); ok {
				st.SelectedStyle = style
			}

		case events.TypeCompleted:
			advance(st, StatusCompleted)
			// completed is terminal, but later completed events may still
			// refine the completion status.
			if s, ok := e.StringPayload("status"); ok {
				switch CompletionStatus(s) {
				case CompletionReady, CompletionCancelled:
					st.CompletionStatus = CompletionStatus(s)
				}
			}
		}
	}

	if !sawStart {
		return nil
	}
	return st
}

// advance moves status forward, never backward.
func advance(st *State, next Status) {
	if statusRank[next] > statusRank[st.Status] {
		st.Status = next
	}
}
