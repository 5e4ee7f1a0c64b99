package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/log"
)

// DefaultDebounce coalesces bursts of state changes into one write.
const DefaultDebounce = 250 * time.Millisecond

// Persister writes scheduled workspace states in the background. Only the
// latest state scheduled within a debounce window is written.
type Persister struct {
	gateway  *Gateway
	debounce time.Duration
	onError  func(error)

	mu       sync.Mutex
	pending  *domain.WorkspaceState
	lastHash string
	writes   int

	kick    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	started bool
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithErrorHandler registers a callback for background write failures.
func WithErrorHandler(fn func(error)) PersisterOption {
	return func(p *Persister) {
		p.onError = fn
	}
}

// NewPersister creates a Persister writing through g.
func NewPersister(g *Gateway, debounce time.Duration, opts ...PersisterOption) *Persister {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	p := &Persister{
		gateway:  g,
		debounce: debounce,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the background writer. It stops when ctx is cancelled or
// Stop is called.
func (p *Persister) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.loop(ctx)
}

// Schedule queues state for writing, replacing any state not yet written.
func (p *Persister) Schedule(state domain.WorkspaceState) {
	s := state.Clone()
	p.mu.Lock()
	p.pending = &s
	p.mu.Unlock()

	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Flush writes the pending state, if any, synchronously.
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	if pending == nil {
		return nil
	}

	text, err := p.gateway.SaveState(ctx, *pending)
	if err != nil {
		p.mu.Lock()
		if p.pending == nil {
			p.pending = pending
		}
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.lastHash = p.gateway.Index().Hash(text, "")
	p.writes++
	p.mu.Unlock()
	return nil
}

// Stop ends the background writer and flushes the pending state.
func (p *Persister) Stop(ctx context.Context) error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	if started {
		select {
		case <-p.done:
		default:
			close(p.done)
		}
		<-p.stopped
	}
	return p.Flush(ctx)
}

// IsOwnWrite reports whether text is the snapshot this Persister wrote last.
func (p *Persister) IsOwnWrite(text string) bool {
	hash := p.gateway.Index().Hash(text, "")
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastHash != "" && hash == p.lastHash
}

// Writes returns how many snapshots have been written.
func (p *Persister) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

func (p *Persister) loop(ctx context.Context) {
	defer close(p.stopped)

	var timer *time.Timer
	timerC := func() <-chan time.Time {
		if timer != nil {
			return timer.C
		}
		return nil
	}

	for {
		select {
		case <-p.kick:
			if timer == nil {
				timer = time.NewTimer(p.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.debounce)

		case <-timerC():
			timer = nil
			if err := p.Flush(ctx); err != nil {
				log.ErrorErr(log.CatPersist, "background snapshot write failed", err)
				if p.onError != nil {
					p.onError(err)
				}
			}

		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case <-p.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
