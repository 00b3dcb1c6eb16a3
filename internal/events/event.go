// Package events defines the append-only event record that is projectd's
// only durable state, the event-type catalog with its legacy alias table,
// and the log contracts used by the flow and pipeline packages.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is a single immutable fact in a flow's history. Once appended to a
// log it is never mutated or removed; log order, not Timestamp, is
// authoritative for tie-breaking.
type Event struct {
	// ID uniquely identifies this event.
	ID string `json:"id"`

	// CorrelationID identifies the flow (or pipeline run) this event
	// belongs to.
	CorrelationID string `json:"correlationId"`

	// Timestamp records when the event was created. Informational only.
	Timestamp time.Time `json:"timestamp"`

	// Type classifies the event. See the catalog in catalog.go.
	Type Type `json:"type"`

	// Payload carries type-specific data.
	Payload map[string]any `json:"payload,omitempty"`

	// EvidenceIDs references supporting artifacts. May be empty.
	EvidenceIDs []string `json:"evidenceIds"`

	// ParentEventID back-references the event that caused this one.
	ParentEventID *string `json:"parentEventId"`
}

// New creates an event with a fresh id and the current time.
func New(correlationID string, typ Type, payload map[string]any) Event {
	return Event{
		ID:            uuid.NewString(),
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
		Type:          typ,
		Payload:       payload,
		EvidenceIDs:   []string{},
	}
}

// FlowIDOf extracts the flow identifier carried by an event. The
// correlation id field wins when set; historical events carried the id in
// the payload, either directly or under a nested context object, so both
// locations are checked before giving up.
func FlowIDOf(e Event) (string, bool) {
	if e.CorrelationID != "" {
		return e.CorrelationID, true
	}
	if id, ok := stringField(e.Payload, "flowId"); ok {
		return id, true
	}
	if nested, ok := e.Payload["context"].(map[string]any); ok {
		if id, ok := stringField(nested, "flowId"); ok {
			return id, true
		}
	}
	return "", false
}

// StringPayload returns a string-valued payload field.
func (e Event) StringPayload(key string) (string, bool) {
	return stringField(e.Payload, key)
}

func stringField(payload map[string]any, key string) (string, bool) {
	if payload == nil {
		return "", false
	}
	s, ok := payload[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Clone returns a deep-enough copy of the event so that callers holding a
// slice returned by a log cannot mutate what the log stored.
func (e Event) Clone() Event {
	out := e
	if e.Payload != nil {
		out.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			out.Payload[k] = v
		}
	}
	if e.EvidenceIDs != nil {
		out.EvidenceIDs = append([]string(nil), e.EvidenceIDs...)
	}
	if e.ParentEventID != nil {
		id := *e.ParentEventID
		out.ParentEventID = &id
	}
	return out
}
