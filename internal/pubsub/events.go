// Package pubsub fans typed events out to in-process subscribers.
package pubsub

import (
	"context"
	"time"
)

// EventType names what happened; subscribers can filter on it.
type EventType string

const (
	// CreatedEvent carries a newly written log entry.
	CreatedEvent EventType = "created"
	// ValidatedEvent carries the report of a batch validation run.
	ValidatedEvent EventType = "validated"
	// CheckedEvent carries the report of a single-document check.
	CheckedEvent EventType = "checked"
)

// Event is one published payload, stamped by the broker.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events, optionally limited to some types.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context, types ...EventType) <-chan Event[T]
}

// Publisher is the sending half of a broker.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}

// Receive waits for the next event on ch.
// Returns false if ctx is cancelled or the channel is closed.
func Receive[T any](ctx context.Context, ch <-chan Event[T]) (Event[T], bool) {
	select {
	case <-ctx.Done():
		return Event[T]{}, false
	case event, ok := <-ch:
		return event, ok
	}
}
