package workspace

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/log"
	"github.com/zjrosen/diagramdesk/internal/pubsub"
	"github.com/zjrosen/diagramdesk/internal/tracing"
)

// Scheduler accepts states for asynchronous persistence.
type Scheduler interface {
	Schedule(state domain.WorkspaceState)
}

// Rejection describes an action the store refused to apply.
type Rejection struct {
	Category     domain.Category
	Err          error
	Notification domain.Notification
}

// Change is delivered to listeners after every dispatch. For a rejected
// action State equals Prev and Rejection is set.
type Change struct {
	Action    Action
	Prev      domain.WorkspaceState
	State     domain.WorkspaceState
	Rejection *Rejection
}

// Accepted reports whether the action was applied.
func (c Change) Accepted() bool {
	return c.Rejection == nil
}

// Listener observes state changes. Listeners run synchronously inside
// Dispatch and must not call Dispatch themselves.
type Listener func(Change)

// Result is the outcome of a dispatch.
type Result struct {
	State domain.WorkspaceState
	// Removed lists the tabs the action closed, including LRU evictions.
	Removed []domain.EditorTab
	Err     error
}

// Accepted reports whether the action was applied.
func (r Result) Accepted() bool {
	return r.Err == nil
}

type listenerEntry struct {
	id int
	fn Listener
}

// Store is the single owner of the workspace state. Every mutation goes
// through Dispatch, which is serialized.
type Store struct {
	dispatchMu sync.Mutex

	mu    sync.RWMutex
	state domain.WorkspaceState

	listenersMu  sync.Mutex
	listeners    []listenerEntry
	nextListener int

	broker    *pubsub.Broker[Change]
	notifier  NotificationCenter
	scheduler Scheduler
	clock     func() time.Time
	tracer    trace.Tracer
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithInitialState sets the state the store starts from.
func WithInitialState(state domain.WorkspaceState) StoreOption {
	return func(s *Store) {
		s.state = state.Clone()
	}
}

// WithNotifier sets where rejection notifications go. Defaults to LogNotifier.
func WithNotifier(n NotificationCenter) StoreOption {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithScheduler enables persistence of accepted states.
func WithScheduler(sch Scheduler) StoreOption {
	return func(s *Store) {
		s.scheduler = sch
	}
}

// WithStoreClock sets the time stamped on actions that carry none.
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTracer records a span per dispatch.
func WithTracer(tracer trace.Tracer) StoreOption {
	return func(s *Store) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewStore creates a Store holding the default state.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		state:    domain.DefaultState(),
		broker:   pubsub.NewBroker[Change](),
		notifier: LogNotifier{},
		clock:    func() time.Time { return time.Now().UTC() },
		tracer:   noop.NewTracerProvider().Tracer("workspace"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a deep copy of the current state.
func (s *Store) State() domain.WorkspaceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Dispatch applies action to the state.
//
// Malformed actions, reducer errors and states that break the workspace
// invariants are rejected: the state is left unchanged, the notifier is
// told and listeners receive a Change carrying the Rejection. Accepted
// actions bump Revision, notify listeners in registration order and are
// scheduled for persistence unless the action skips it.
func (s *Store) Dispatch(action Action) Result {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	prev := s.State()

	if isNil(action) {
		return s.reject(nil, prev, &domain.StructuralError{Reason: "nil action"})
	}
	if action.Type() == "" {
		return s.reject(action, prev, &domain.StructuralError{Reason: "missing action type"})
	}
	action.base().stamp(s.clock())

	_, span := s.tracer.Start(context.Background(), tracing.SpanPrefixAction+string(action.Type()),
		trace.WithAttributes(
			attribute.String(tracing.AttrActionType, string(action.Type())),
			attribute.String(tracing.AttrActionID, action.ID()),
			attribute.String(tracing.AttrActionSource, string(action.Source())),
		))
	defer span.End()

	if err := action.Validate(); err != nil {
		res := s.reject(action, prev, &domain.StructuralError{ActionType: string(action.Type()), Reason: err.Error()})
		tracing.End(span, res.Err)
		return res
	}

	next, err := Reduce(prev, action)
	if err != nil {
		res := s.reject(action, prev, err)
		tracing.End(span, res.Err)
		return res
	}
	next.Revision = prev.Revision + 1
	if err := domain.CheckInvariants(next); err != nil {
		res := s.reject(action, prev, fmt.Errorf("%s: %w", action.Type(), err))
		tracing.End(span, res.Err)
		return res
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	log.Debug(log.CatWorkspace, "action applied",
		"type", action.Type(),
		"source", action.Source(),
		"revision", next.Revision)

	s.emit(Change{Action: action, Prev: prev, State: next.Clone()})
	if s.scheduler != nil && !action.SkipPersist() {
		s.scheduler.Schedule(next)
	}
	tracing.End(span, nil)

	return Result{State: next.Clone(), Removed: RemovedTabs(prev, next)}
}

func (s *Store) reject(action Action, prev domain.WorkspaceState, err error) Result {
	cat := categoryOf(err)
	title := "Action rejected"
	if action != nil {
		title = fmt.Sprintf("Action %s rejected", action.Type())
	}
	n := ErrorNotification(title, err)
	n.Category = cat
	if action != nil {
		n.CreatedAt = action.CreatedAt()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.clock()
	}

	log.Warn(log.CatWorkspace, "action rejected", "category", cat, "error", err)

	s.notifier.Notify(n)
	s.emit(Change{
		Action:    action,
		Prev:      prev,
		State:     prev.Clone(),
		Rejection: &Rejection{Category: cat, Err: err, Notification: n},
	})
	return Result{State: prev, Err: err}
}

// emit delivers c to every listener in registration order, then to the broker.
func (s *Store) emit(c Change) {
	s.listenersMu.Lock()
	listeners := append([]listenerEntry(nil), s.listeners...)
	s.listenersMu.Unlock()

	for _, l := range listeners {
		s.callListener(l, c)
	}

	at := s.clock()
	if c.Action != nil && !isNil(c.Action) && !c.Action.CreatedAt().IsZero() {
		at = c.Action.CreatedAt()
	}
	if c.Accepted() {
		s.broker.PublishAt(pubsub.ChangedEvent, c, at)
	} else {
		s.broker.PublishAt(pubsub.RejectedEvent, c, at)
	}
}

func (s *Store) callListener(l listenerEntry, c Change) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatWorkspace, "listener panicked",
				"listener", l.id,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	l.fn(c)
}

// Subscribe registers listener and returns a function that removes it.
func (s *Store) Subscribe(listener Listener) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	s.nextListener++
	id := s.nextListener
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: listener})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			defer s.listenersMu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Events returns an asynchronous feed of changes that ends when ctx is
// cancelled. Slow readers miss events rather than blocking Dispatch.
func (s *Store) Events(ctx context.Context) <-chan pubsub.Event[Change] {
	return s.broker.Subscribe(ctx)
}

// Close removes every listener and closes event feeds.
func (s *Store) Close() {
	s.listenersMu.Lock()
	s.listeners = nil
	s.listenersMu.Unlock()
	s.broker.Close()
}

// RemovedTabs returns the tabs open in prev that are no longer open in next.
func RemovedTabs(prev, next domain.WorkspaceState) []domain.EditorTab {
	open := make(map[domain.TabID]struct{}, len(next.EditorPane.OpenTabs))
	for _, t := range next.EditorPane.OpenTabs {
		open[t.ID] = struct{}{}
	}
	var removed []domain.EditorTab
	for _, t := range prev.EditorPane.OpenTabs {
		if _, ok := open[t.ID]; !ok {
			removed = append(removed, t.Clone())
		}
	}
	return removed
}

func isNil(a Action) bool {
	if a == nil {
		return true
	}
	v := reflect.ValueOf(a)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
