// Package events carries domain events from services to asynchronous
// listeners. Delivery is best effort and at most once: publishers never wait
// for listeners and listener failures are only logged.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrBusClosed is returned by Publish after the bus has been shut down.
var ErrBusClosed = errors.New("events: bus closed")

// Event is the envelope delivered to handlers. Data holds the JSON encoded
// payload so in-process and broker-backed buses hand listeners the same shape.
type Event struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewEvent encodes payload into an envelope named name.
func NewEvent(name string, payload any, at time.Time) (Event, error) {
	if name == "" {
		return Event{}, errors.New("events: name is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode %s payload: %w", name, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		OccurredAt: at.UTC(),
		Data:       data,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("events: %s has no payload", e.Name)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("events: decode %s payload: %w", e.Name, err)
	}
	return nil
}

// Handler consumes one event. Returned errors are logged by the bus.
type Handler func(ctx context.Context, evt Event) error

// Publisher is the side services depend on.
type Publisher interface {
	Publish(ctx context.Context, name string, payload any) error
}

// Bus is a publish/subscribe channel for domain events.
type Bus interface {
	Publisher
	// Subscribe registers h for events called name. The name "*" receives
	// every event. The returned func removes the subscription.
	Subscribe(name string, h Handler) (unsubscribe func())
	// Close stops accepting events and waits for in-flight handlers until
	// ctx is done.
	Close(ctx context.Context) error
}

// Wildcard subscribes a handler to every event name.
const Wildcard = "*"
