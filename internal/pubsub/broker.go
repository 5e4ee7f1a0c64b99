package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultBufferSize = 64

// Broker fans events out to subscribers without ever blocking the publisher.
// A subscriber whose buffer is full misses the event; Dropped counts those
// misses across all subscribers.
type Broker[T any] struct {
	mu         sync.RWMutex
	subs       map[*subscription[T]]struct{}
	closed     bool
	done       chan struct{}
	watchers   sync.WaitGroup
	bufferSize int
	now        func() time.Time
	seq        atomic.Uint64
	dropped    atomic.Int64
}

type subscription[T any] struct {
	ch   chan Event[T]
	once sync.Once
}

func (s *subscription[T]) close() {
	s.once.Do(func() { close(s.ch) })
}

// Option configures a Broker.
type Option func(*brokerOptions)

type brokerOptions struct {
	bufferSize int
	now        func() time.Time
}

// WithBufferSize sets the per-subscriber channel capacity.
func WithBufferSize(n int) Option {
	return func(o *brokerOptions) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithClock sets the time source for Publish timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *brokerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewBroker creates a broker. Subscribers buffer 64 events unless
// WithBufferSize says otherwise.
func NewBroker[T any](opts ...Option) *Broker[T] {
	o := brokerOptions{bufferSize: defaultBufferSize, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Broker[T]{
		subs:       make(map[*subscription[T]]struct{}),
		done:       make(chan struct{}),
		bufferSize: o.bufferSize,
		now:        o.now,
	}
}

// Subscribe returns a channel receiving every event published from now on.
// The channel is closed when ctx is done or the broker is closed.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription[T]{ch: make(chan Event[T], b.bufferSize)}
	if b.closed {
		sub.close()
		return sub.ch
	}
	b.subs[sub] = struct{}{}

	if ctx.Done() != nil {
		b.watchers.Add(1)
		go func() {
			defer b.watchers.Done()
			select {
			case <-ctx.Done():
				b.unsubscribe(sub)
			case <-b.done:
			}
		}()
	}
	return sub.ch
}

func (b *Broker[T]) unsubscribe(sub *subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	sub.close()
}

// Publish sends an event stamped with the broker clock.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.PublishAt(eventType, payload, b.now())
}

// PublishAt sends an event carrying an explicit timestamp, such as the time
// of the action that produced it.
func (b *Broker[T]) PublishAt(eventType EventType, payload T, at time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	event := Event[T]{
		Type:      eventType,
		Payload:   payload,
		Timestamp: at,
		Seq:       b.seq.Add(1),
	}
	for sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Close shuts down the broker and closes every subscriber channel. Later
// calls to Close or Publish are no-ops.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	for sub := range b.subs {
		sub.close()
	}
	b.subs = nil
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Published returns how many events have been published.
func (b *Broker[T]) Published() uint64 {
	return b.seq.Load()
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *Broker[T]) Dropped() int64 {
	return b.dropped.Load()
}
