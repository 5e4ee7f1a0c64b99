package tabs

import (
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

// DefaultMaxTabs is the tab limit used when none is configured.
const DefaultMaxTabs = 10

// Option configures a Store.
type Option func(*Store)

// WithMaxTabs sets the tab limit. Values below 1 disable the limit.
func WithMaxTabs(n int) Option {
	return func(s *Store) {
		s.maxTabs = n
	}
}

// WithClock sets the time source used for LastAccessed.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator sets the tab id source.
func WithIDGenerator(gen func() domain.TabID) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithIsolationKey sets the function deriving a tab's IsolationKey from the
// diagram content and title.
func WithIsolationKey(fn func(content, name string) string) Option {
	return func(s *Store) {
		s.isolationKey = fn
	}
}

// WithEvictionHook registers a callback invoked with every tab closed by
// LRU eviction.
func WithEvictionHook(fn func(domain.EditorTab)) Option {
	return func(s *Store) {
		s.onEvict = fn
	}
}

func defaultClock() time.Time {
	return time.Now().UTC()
}

func defaultID() domain.TabID {
	return domain.TabID(uuid.NewString())
}
