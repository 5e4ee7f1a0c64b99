// Package tabs manages the open editor tabs of a workspace: deduplication,
// LRU eviction of unpinned tabs, pinning, ordering and active tab tracking.
//
// A Store can be used on its own or rebuilt from a snapshot with FromPane,
// which is how the workspace reducer applies tab actions to a state value.
package tabs

import (
	"sync"
	"time"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

// Store owns a set of open tabs. Unknown tab ids are reported through
// boolean results, never errors. Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	open    []domain.EditorTab // in the order tabs were opened
	order   []domain.TabID     // explicit tab order, most recently used last
	active  domain.TabID
	nextSeq int64

	maxTabs      int
	clock        func() time.Time
	newID        func() domain.TabID
	isolationKey func(content, name string) string
	onEvict      func(domain.EditorTab)
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		open:    []domain.EditorTab{},
		order:   []domain.TabID{},
		maxTabs: DefaultMaxTabs,
		clock:   defaultClock,
		newID:   defaultID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromPane creates a Store holding a deep copy of pane.
func FromPane(pane domain.EditorPane, opts ...Option) *Store {
	s := New(opts...)
	p := pane.Clone()
	if p.OpenTabs != nil {
		s.open = p.OpenTabs
	}
	if p.TabOrder != nil {
		s.order = p.TabOrder
	}
	s.active = p.ActiveTabID
	s.nextSeq = p.NextSeq
	return s
}

// Pane returns a deep copy of the store as an EditorPane.
func (s *Store) Pane() domain.EditorPane {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.EditorPane{
		OpenTabs:    s.open,
		ActiveTabID: s.active,
		TabOrder:    s.order,
		NextSeq:     s.nextSeq,
	}.Clone()
}

// OpenTab opens diagram in a tab and activates it.
//
// If a tab already references the diagram it is switched to and returned.
// Otherwise a new tab is created; when the store is full the least recently
// accessed unpinned tab is evicted first. If every open tab is pinned a
// *domain.CapacityError is returned and nothing changes.
func (s *Store) OpenTab(d domain.Diagram) (domain.EditorTab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexByDiagram(d.ID, d.LocalKey); i >= 0 {
		s.switchTo(s.open[i].ID)
		return s.open[i].Clone(), nil
	}

	var evicted []domain.EditorTab
	for s.maxTabs > 0 && len(s.open) >= s.maxTabs {
		victim, ok := s.lruVictim()
		if !ok {
			return domain.EditorTab{}, &domain.CapacityError{MaxTabs: s.maxTabs, Pinned: s.pinnedCount()}
		}
		tab, _ := s.closeTab(victim)
		evicted = append(evicted, tab)
	}

	state := domain.EditorState{Content: d.Content}
	if d.LastCursor != nil {
		state.Cursor = *d.LastCursor
	}
	if d.LastScroll != nil {
		state.Scroll = *d.LastScroll
	}

	tab := domain.EditorTab{
		ID:           s.newID(),
		DiagramID:    d.ID,
		DiagramKey:   d.LocalKey,
		ProjectID:    d.ProjectID,
		Title:        d.Title,
		DiagramType:  d.Type,
		IsModified:   d.IsModified,
		IsActive:     true,
		EditorState:  state,
		LastAccessed: s.clock(),
		OpenedSeq:    s.nextSeq,
	}
	if s.isolationKey != nil {
		tab.IsolationKey = s.isolationKey(d.Content, d.Title)
	}
	s.nextSeq++

	for i := range s.open {
		s.open[i].IsActive = false
	}
	s.open = append(s.open, tab)
	s.order = append(s.order, tab.ID)
	s.active = tab.ID

	if s.onEvict != nil {
		for _, t := range evicted {
			s.onEvict(t)
		}
	}

	return tab.Clone(), nil
}

// CloseTab removes the tab and returns it; the caller decides what to do
// with unsaved changes by inspecting IsModified. When the active tab is
// closed, the tab preceding it in the order becomes active, else the last
// remaining tab.
func (s *Store) CloseTab(id domain.TabID) (domain.EditorTab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tab, ok := s.closeTab(id)
	if !ok {
		return domain.EditorTab{}, false
	}
	return tab.Clone(), true
}

// SwitchToTab activates the tab, refreshes its LastAccessed and moves it to
// the most recently used end of the order.
func (s *Store) SwitchToTab(id domain.TabID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.switchTo(id)
}

// CloseAllTabs closes every tab, pinned or not, and returns how many were closed.
func (s *Store) CloseAllTabs() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.open)
	s.open = []domain.EditorTab{}
	s.order = []domain.TabID{}
	s.active = ""
	return n
}

// CloseOtherTabs closes every unpinned tab except keep and activates keep.
func (s *Store) CloseOtherTabs(keep domain.TabID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index(keep) < 0 {
		return false
	}

	open := s.open[:0]
	for _, t := range s.open {
		if t.ID == keep || t.IsPinned {
			open = append(open, t)
		}
	}
	s.open = open

	order := s.order[:0]
	for _, id := range s.order {
		if s.index(id) >= 0 {
			order = append(order, id)
		}
	}
	s.order = order

	s.activate(keep)
	return true
}

// ToggleTabPin flips the pinned flag of the tab.
func (s *Store) ToggleTabPin(id domain.TabID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return false
	}
	s.open[i].IsPinned = !s.open[i].IsPinned
	return true
}

// ReorderTab moves the tab to newIndex in the order. The index is clamped
// to the valid range.
func (s *Store) ReorderTab(id domain.TabID, newIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.orderIndex(id)
	if from < 0 {
		return false
	}
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(s.order)-1 {
		newIndex = len(s.order) - 1
	}

	s.order = append(s.order[:from], s.order[from+1:]...)
	s.order = append(s.order[:newIndex], append([]domain.TabID{id}, s.order[newIndex:]...)...)
	return true
}

// SetTabModified sets the modified flag of the tab.
func (s *Store) SetTabModified(id domain.TabID, modified bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return false
	}
	s.open[i].IsModified = modified
	return true
}

// UpdateTabEditorState applies a partial editor state update. Changing the
// content through a patch marks the tab modified but records no history;
// use UpdateTabContent for edits that should be undoable.
func (s *Store) UpdateTabEditorState(id domain.TabID, patch domain.EditorStatePatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return false
	}
	before := s.open[i].EditorState.Content
	s.open[i].EditorState = patch.Apply(s.open[i].EditorState)
	if s.open[i].EditorState.Content != before {
		s.open[i].IsModified = true
	}
	return true
}

// RetargetTab binds the tab to d, typically after its first remote save
// assigned an id. It fails if another tab already references d.
func (s *Store) RetargetTab(id domain.TabID, d domain.Diagram) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return false
	}
	for j, t := range s.open {
		if j != i && t.References(d.ID, d.LocalKey) {
			return false
		}
	}
	s.open[i].DiagramID = d.ID
	if d.LocalKey != "" {
		s.open[i].DiagramKey = d.LocalKey
	}
	s.open[i].ProjectID = d.ProjectID
	s.open[i].Title = d.Title
	s.open[i].DiagramType = d.Type
	return true
}

// SetMaxTabs changes the tab limit, evicting unpinned tabs until the open
// count fits. It returns the evicted tabs, or a *domain.CapacityError
// without changing anything when pinned tabs alone exceed the limit.
func (s *Store) SetMaxTabs(n int) ([]domain.EditorTab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > 0 && s.pinnedCount() > n {
		return nil, &domain.CapacityError{MaxTabs: n, Pinned: s.pinnedCount()}
	}
	s.maxTabs = n

	var evicted []domain.EditorTab
	for n > 0 && len(s.open) > n {
		victim, _ := s.lruVictim()
		tab, _ := s.closeTab(victim)
		evicted = append(evicted, tab.Clone())
	}
	if s.onEvict != nil {
		for _, t := range evicted {
			s.onEvict(t)
		}
	}
	return evicted, nil
}

// Tab returns a copy of the tab.
func (s *Store) Tab(id domain.TabID) (domain.EditorTab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return domain.EditorTab{}, false
	}
	return s.open[i].Clone(), true
}

// FindByDiagram returns the tab referencing the diagram, if any.
func (s *Store) FindByDiagram(id domain.DiagramID, localKey string) (domain.EditorTab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexByDiagram(id, localKey)
	if i < 0 {
		return domain.EditorTab{}, false
	}
	return s.open[i].Clone(), true
}

// Tabs returns copies of the open tabs in tab order.
func (s *Store) Tabs() []domain.EditorTab {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.EditorTab, 0, len(s.order))
	for _, id := range s.order {
		if i := s.index(id); i >= 0 {
			out = append(out, s.open[i].Clone())
		}
	}
	return out
}

// TabOrder returns a copy of the tab order.
func (s *Store) TabOrder() []domain.TabID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.TabID{}, s.order...)
}

// ActiveTabID returns the active tab id, or "" when no tab is open.
func (s *Store) ActiveTabID() domain.TabID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

// ActiveTab returns a copy of the active tab.
func (s *Store) ActiveTab() (domain.EditorTab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(s.active)
	if i < 0 {
		return domain.EditorTab{}, false
	}
	return s.open[i].Clone(), true
}

// TabCount returns the number of open tabs.
func (s *Store) TabCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.open)
}

// MaxTabs returns the tab limit.
func (s *Store) MaxTabs() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.maxTabs
}

func (s *Store) index(id domain.TabID) int {
	if id == "" {
		return -1
	}
	for i, t := range s.open {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) orderIndex(id domain.TabID) int {
	for i, o := range s.order {
		if o == id {
			return i
		}
	}
	return -1
}

func (s *Store) indexByDiagram(id domain.DiagramID, localKey string) int {
	for i, t := range s.open {
		if t.References(id, localKey) {
			return i
		}
	}
	return -1
}

func (s *Store) pinnedCount() int {
	n := 0
	for _, t := range s.open {
		if t.IsPinned {
			n++
		}
	}
	return n
}

// lruVictim picks the unpinned tab with the oldest LastAccessed. Ties go to
// the tab opened first.
func (s *Store) lruVictim() (domain.TabID, bool) {
	best := -1
	for i, t := range s.open {
		if t.IsPinned {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := s.open[best]
		if t.LastAccessed.Before(b.LastAccessed) ||
			(t.LastAccessed.Equal(b.LastAccessed) && t.OpenedSeq < b.OpenedSeq) {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return s.open[best].ID, true
}

func (s *Store) closeTab(id domain.TabID) (domain.EditorTab, bool) {
	i := s.index(id)
	if i < 0 {
		return domain.EditorTab{}, false
	}
	tab := s.open[i]
	s.open = append(s.open[:i], s.open[i+1:]...)

	pos := s.orderIndex(id)
	if pos >= 0 {
		s.order = append(s.order[:pos], s.order[pos+1:]...)
	}

	if s.active == id {
		switch {
		case len(s.order) == 0:
			s.active = ""
		case pos > 0:
			s.activate(s.order[pos-1])
		default:
			s.activate(s.order[len(s.order)-1])
		}
	}

	tab.IsActive = false
	return tab, true
}

func (s *Store) switchTo(id domain.TabID) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.activate(id)
	s.open[i].LastAccessed = s.clock()

	if pos := s.orderIndex(id); pos >= 0 {
		s.order = append(s.order[:pos], s.order[pos+1:]...)
	}
	s.order = append(s.order, id)
	return true
}

func (s *Store) activate(id domain.TabID) {
	s.active = id
	for i := range s.open {
		s.open[i].IsActive = s.open[i].ID == id
	}
}
