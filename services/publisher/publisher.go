package publisher

import (
	"context"

	"sjsage522/eventworker/internal/event"
)

// Publisher announces newly created events to downstream consumers
type Publisher interface {
	// Publish publishes a created event
	Publish(ctx context.Context, e *event.Event) error

	// Close closes the publisher connection
	Close() error
}

// Nop discards every event. It is used when publishing is disabled.
type Nop struct{}

// Publish implements Publisher
func (Nop) Publish(context.Context, *event.Event) error { return nil }

// Close implements Publisher
func (Nop) Close() error { return nil }
