// Package pubsub provides a generic publish/subscribe event system.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// ChangedEvent carries an accepted workspace state transition.
	ChangedEvent EventType = "changed"
	// RejectedEvent carries an action the workspace refused to apply.
	RejectedEvent EventType = "rejected"
	// LoggedEvent carries a formatted log line.
	LoggedEvent EventType = "logged"
)

// Event represents a published event with a typed payload. Seq increases by
// one for every Publish on a broker, so a subscriber that sees a gap knows
// events were dropped for it.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
	Seq       uint64
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
