package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	e := New("flow-1", TypeStarted, map[string]any{"request": "create a new app"})

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "flow-1", e.CorrelationID)
	assert.Equal(t, TypeStarted, e.Type)
	assert.False(t, e.Timestamp.IsZero())
	assert.NotNil(t, e.EvidenceIDs)
	assert.Nil(t, e.ParentEventID)
}

func TestFlowIDOf(t *testing.T) {
	tests := []struct {
		name   string
		event  Event
		wantID string
		wantOK bool
	}{
		{
			name:   "correlation id wins",
			event:  Event{CorrelationID: "flow-1", Payload: map[string]any{"flowId": "other"}},
			wantID: "flow-1",
			wantOK: true,
		},
		{
			name:   "payload flowId",
			event:  Event{Payload: map[string]any{"flowId": "flow-2"}},
			wantID: "flow-2",
			wantOK: true,
		},
		{
			name:   "nested context flowId",
			event:  Event{Payload: map[string]any{"context": map[string]any{"flowId": "flow-3"}}},
			wantID: "flow-3",
			wantOK: true,
		},
		{
			name:   "payload checked before nested context",
			event:  Event{Payload: map[string]any{"flowId": "outer", "context": map[string]any{"flowId": "inner"}}},
			wantID: "outer",
			wantOK: true,
		},
		{
			name:   "absent from both",
			event:  Event{Payload: map[string]any{"other": "x"}},
			wantOK: false,
		},
		{
			name:   "no payload",
			event:  Event{},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := FlowIDOf(tt.event)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestClone(t *testing.T) {
	parent := "parent-id"
	e := Event{
		ID:            "e1",
		CorrelationID: "flow-1",
		Payload:       map[string]any{"k": "v"},
		EvidenceIDs:   []string{"ev-1"},
		ParentEventID: &parent,
	}

	clone := e.Clone()
	clone.Payload["k"] = "mutated"
	clone.EvidenceIDs[0] = "mutated"
	*clone.ParentEventID = "mutated"

	assert.Equal(t, "v", e.Payload["k"])
	assert.Equal(t, "ev-1", e.EvidenceIDs[0])
	assert.Equal(t, "parent-id", *e.ParentEventID)
}
