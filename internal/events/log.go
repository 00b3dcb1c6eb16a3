package events

import (
	"context"
	"fmt"
	"sync"
)

// Log is the append-only event log contract. Append must be atomic and
// order-preserving per correlation id: the deriver's tie-breaking depends
// on events landing in exactly the order their emitting operation decided.
type Log interface {
	// Append durably appends the event. The event is never mutated or
	// removed afterwards.
	Append(ctx context.Context, e Event) error

	// Events returns the events for one flow, in append order.
	Events(ctx context.Context, flowID string) ([]Event, error)
}

// MemoryLog is an in-process Log. It is the reference implementation and
// the substrate for tests; durable deployments wrap it (or replace it)
// with a publishing decorator.
type MemoryLog struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryLog returns an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append stores a defensive copy of the event.
func (l *MemoryLog) Append(_ context.Context, e Event) error {
	if e.ID == "" {
		return fmt.Errorf("append: event has no id")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e.Clone())
	return nil
}

// Events returns copies of the events whose flow id matches, preserving
// append order. Events carrying the id only in their payload (historical
// shape) are matched too.
func (l *MemoryLog) Events(_ context.Context, flowID string) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Event
	for _, e := range l.events {
		id, ok := FlowIDOf(e)
		if ok && id == flowID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

// Len reports the total number of appended events across all flows.
func (l *MemoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
