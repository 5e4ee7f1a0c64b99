package pubsub

import (
	"context"
)

// Next blocks until an event arrives on ch. ok is false when ctx is
// cancelled or the channel is closed.
func Next[T any](ctx context.Context, ch <-chan Event[T]) (event Event[T], ok bool) {
	select {
	case <-ctx.Done():
		return event, false
	case event, ok = <-ch:
		return event, ok
	}
}

// ContinuousListener keeps a broker subscription open across reads.
type ContinuousListener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewContinuousListener creates a new listener that subscribes to the broker.
// The subscription is automatically cleaned up when the context is cancelled.
func NewContinuousListener[T any](ctx context.Context, broker *Broker[T]) *ContinuousListener[T] {
	return &ContinuousListener[T]{
		ctx: ctx,
		ch:  broker.Subscribe(ctx),
	}
}

// Next waits for the next event on the subscription.
func (l *ContinuousListener[T]) Next() (Event[T], bool) {
	return Next(l.ctx, l.ch)
}

// Run calls fn for each event until the subscription ends.
func (l *ContinuousListener[T]) Run(fn func(Event[T])) {
	for {
		event, ok := l.Next()
		if !ok {
			return
		}
		fn(event)
	}
}
