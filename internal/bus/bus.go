// Package bus is the group broadcast mechanism sessions use to reach
// each other. A session subscribes to the groups it cares about; an
// event published to a group reaches every subscriber registered at the
// moment of the publish, in FIFO order per subscriber.
package bus

import (
	"context"
	"encoding/json"

	"github.com/oklog/ulid/v2"
)

// Event is the envelope carried on the bus. Origin identifies the
// publishing session so subscribers can suppress their own echoes.
type Event struct {
	ID      string          `json:"id"`
	Origin  string          `json:"origin,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent builds an envelope, marshaling the payload and assigning a
// ULID.
func NewEvent(origin, eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:      ulid.Make().String(),
		Origin:  origin,
		Type:    eventType,
		Payload: data,
	}, nil
}

// Subscriber receives events for the groups it has joined. Deliver must
// never block: a slow subscriber is the subscriber's problem, not the
// publisher's.
type Subscriber interface {
	ID() string
	Deliver(ev *Event)
}

// Bus is the publish/subscribe contract. Subscribe and Unsubscribe are
// idempotent; publishing to a group with no subscribers is a no-op.
type Bus interface {
	Subscribe(group string, sub Subscriber)
	Unsubscribe(group string, sub Subscriber)
	Publish(ctx context.Context, group string, ev *Event) error
	Close() error
}
