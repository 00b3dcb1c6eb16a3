package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// subjectPrefix is the NATS subject root for flow events. Each flow gets
// its own subject so observers can filter server-side.
const subjectPrefix = "projectd.flow"

// Connect dials NATS with the standard reconnect policy.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// PublishingLog decorates a Log so every appended event is also published
// on NATS for live observers. Publication is a convenience, not a
// correctness requirement: append durability comes from the inner log, and
// a publish failure does not fail the append.
type PublishingLog struct {
	inner Log
	nc    *nats.Conn
}

// NewPublishingLog wraps inner with NATS publication on nc.
func NewPublishingLog(inner Log, nc *nats.Conn) *PublishingLog {
	return &PublishingLog{inner: inner, nc: nc}
}

// Append appends to the inner log, then best-effort publishes the event.
func (l *PublishingLog) Append(ctx context.Context, e Event) error {
	if err := l.inner.Append(ctx, e); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	flowID, ok := FlowIDOf(e)
	if !ok {
		return nil
	}
	_ = l.nc.Publish(Subject(flowID), data)
	return nil
}

// Events delegates to the inner log.
func (l *PublishingLog) Events(ctx context.Context, flowID string) ([]Event, error) {
	return l.inner.Events(ctx, flowID)
}

// Subject returns the NATS subject for one flow's events.
func Subject(flowID string) string {
	return fmt.Sprintf("%s.%s", subjectPrefix, flowID)
}

// Subscribe delivers each of a flow's published events to handler until
// the returned subscription is unsubscribed. Malformed messages are
// dropped.
func Subscribe(nc *nats.Conn, flowID string, handler func(Event)) (*nats.Subscription, error) {
	return nc.Subscribe(Subject(flowID), func(msg *nats.Msg) {
		var e Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			return
		}
		handler(e)
	})
}
