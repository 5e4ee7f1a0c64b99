package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/zjrosen/diagramdesk/internal/contenthash"
	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/log"
	"github.com/zjrosen/diagramdesk/internal/persistence"
	"github.com/zjrosen/diagramdesk/internal/remotesync"
)

// Remote is the project service as seen by the workspace.
type Remote interface {
	ListProjects(ctx context.Context) ([]domain.Project, error)
	LoadProject(ctx context.Context, projectID string) (domain.Project, error)
	CreateProject(ctx context.Context, id, name, description string) (domain.Project, error)
	SaveDiagram(ctx context.Context, req remotesync.SaveRequest) (domain.Diagram, error)
	DeleteDiagram(ctx context.Context, projectID string, id domain.DiagramID) error
}

// ChangeSource signals that the stored snapshot may have been written by
// another process.
type ChangeSource interface {
	Start() (<-chan struct{}, error)
	Stop() error
}

// DefaultContentDebounce is how long content must stay unchanged before it
// is written to the tab's autosave draft.
const DefaultContentDebounce = 750 * time.Millisecond

// SessionConfig configures a Session.
type SessionConfig struct {
	ContentDebounce time.Duration
	// CallTimeout bounds background remote calls such as autosave.
	CallTimeout time.Duration
}

// Session owns a Store and performs the side effects around it: remote
// calls, drafts, persistence, autosave and external change handling. Every
// result re-enters the state through Dispatch.
type Session struct {
	store     *Store
	remote    Remote
	gateway   *persistence.Gateway
	persister *persistence.Persister
	notifier  NotificationCenter
	changes   ChangeSource
	cfg       SessionConfig

	mu       sync.Mutex
	retries  map[string]func(context.Context) error
	timers   map[domain.TabID]*time.Timer
	cron     *cron.Cron
	entry    cron.EntryID
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	stopped  bool
	wg       sync.WaitGroup

	unsubscribe func()
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithPersistence stores drafts through g and the state through p.
func WithPersistence(g *persistence.Gateway, p *persistence.Persister) SessionOption {
	return func(s *Session) {
		s.gateway = g
		s.persister = p
	}
}

// WithChangeSource reloads the state when src reports an external write.
func WithChangeSource(src ChangeSource) SessionOption {
	return func(s *Session) {
		s.changes = src
	}
}

// WithSessionNotifier sets where notifications are shown.
func WithSessionNotifier(n NotificationCenter) SessionOption {
	return func(s *Session) {
		if n != nil {
			s.notifier = n
		}
	}
}

// NewSession creates a Session over store. remote may be nil when the
// workspace runs without a project service.
func NewSession(store *Store, remote Remote, cfg SessionConfig, opts ...SessionOption) *Session {
	if cfg.ContentDebounce <= 0 {
		cfg.ContentDebounce = DefaultContentDebounce
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = time.Minute
	}
	s := &Session{
		store:    store,
		remote:   remote,
		notifier: LogNotifier{},
		cfg:      cfg,
		retries:  make(map[string]func(context.Context) error),
		timers:   make(map[domain.TabID]*time.Timer),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsubscribe = store.Subscribe(s.onChange)
	return s
}

// Store returns the underlying store.
func (s *Session) Store() *Store {
	return s.store
}

// State returns a copy of the current state.
func (s *Session) State() domain.WorkspaceState {
	return s.store.State()
}

// Dispatch forwards to the store.
func (s *Session) Dispatch(a Action) Result {
	return s.store.Dispatch(a)
}

// ===========================================================================
// Initiators
// ===========================================================================

// LoadProjects fetches the project list.
func (s *Session) LoadProjects(ctx context.Context) error {
	if err := s.requireRemote(); err != nil {
		return err
	}
	projects, err := s.remote.ListProjects(ctx)
	if err != nil {
		return s.fail("Could not load projects", err, s.LoadProjects)
	}
	a := NewProjectListLoaded(projects)
	a.SetSource(SourceRemote)
	return s.store.Dispatch(a).Err
}

// CreateProject creates a project remotely and opens it.
func (s *Session) CreateProject(ctx context.Context, name, description string) (domain.Project, error) {
	if err := s.requireRemote(); err != nil {
		return domain.Project{}, err
	}
	id := uuid.NewString()
	p, err := s.remote.CreateProject(ctx, id, name, description)
	if err != nil {
		return domain.Project{}, s.fail("Could not create project", err, func(ctx context.Context) error {
			_, err := s.CreateProject(ctx, name, description)
			return err
		})
	}
	a := NewProjectCreated(p)
	a.SetSource(SourceRemote)
	if res := s.store.Dispatch(a); res.Err != nil {
		return domain.Project{}, res.Err
	}
	s.Notify(successNotification("Project created", p.Name))
	return p, nil
}

// OpenProject loads a project with its diagrams and makes it current.
func (s *Session) OpenProject(ctx context.Context, projectID string) error {
	if err := s.requireRemote(); err != nil {
		return err
	}
	p, err := s.remote.LoadProject(ctx, projectID)
	if err != nil {
		return s.fail("Could not open project", err, func(ctx context.Context) error {
			return s.OpenProject(ctx, projectID)
		})
	}
	a := NewProjectLoaded(p)
	a.SetSource(SourceRemote)
	return s.store.Dispatch(a).Err
}

// CreateDiagram adds an unsaved diagram to the current project and opens
// it. It gets an id on its first save.
func (s *Session) CreateDiagram(title string, typ domain.DiagramType, content string) (domain.TabID, error) {
	state := s.store.State()
	if state.CurrentProject == nil {
		return "", domain.ErrProjectNotLoaded
	}
	if !typ.Valid() {
		return "", &domain.ValidationError{Message: "invalid diagram", Fields: map[string]string{"type": "unknown diagram type"}}
	}
	d := domain.Diagram{
		LocalKey:   uuid.NewString(),
		ProjectID:  state.CurrentProject.ID,
		Title:      title,
		Content:    content,
		Type:       typ,
		IsModified: true,
	}
	if res := s.store.Dispatch(NewDiagramAdded(d)); res.Err != nil {
		return "", res.Err
	}
	open := NewTabOpened(d)
	if res := s.store.Dispatch(open); res.Err != nil {
		return "", res.Err
	}
	return open.TabID, nil
}

// OpenDiagram opens a diagram of the current project in a tab. id is the
// server id, or the local key of a diagram that was never saved. An
// autosave draft that differs from the diagram content is restored as an
// undoable edit.
func (s *Session) OpenDiagram(ctx context.Context, id domain.DiagramID) (domain.TabID, error) {
	state := s.store.State()
	p := state.CurrentProject
	if p == nil {
		return "", domain.ErrProjectNotLoaded
	}
	i := p.FindDiagram(id, string(id))
	if i < 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrDiagramNotFound, id)
	}
	d := p.Diagrams[i]

	res := s.store.Dispatch(NewTabOpened(d))
	if res.Err != nil {
		return "", res.Err
	}
	tab, ok := res.State.ActiveTab()
	if !ok {
		return "", domain.ErrTabNotFound
	}
	s.restoreDraft(ctx, tab, d)
	return tab.ID, nil
}

func (s *Session) restoreDraft(ctx context.Context, tab domain.EditorTab, d domain.Diagram) {
	if tab.IsolationKey == "" || tab.EditorState.Content != d.Content {
		return
	}
	draft, ok := s.loadDraft(ctx, tab.IsolationKey, d)
	if !ok || draft.Content == tab.EditorState.Content {
		return
	}
	a := NewTabContentUpdated(tab.ID, draft.Content)
	a.SetSource(SourceStorage)
	if res := s.store.Dispatch(a); res.Err == nil {
		s.Notify(domain.Notification{
			ID:      uuid.NewString(),
			Type:    domain.NotificationInfo,
			Title:   "Unsaved changes recovered",
			Message: fmt.Sprintf("Restored the autosaved draft of %q", d.Title),
		})
	}
}

// UpdateContent records an edit and schedules the autosave draft write.
func (s *Session) UpdateContent(tabID domain.TabID, content string) error {
	if res := s.store.Dispatch(NewTabContentUpdated(tabID, content)); res.Err != nil {
		return res.Err
	}
	s.scheduleDraft(tabID)
	return nil
}

// SaveTab saves the tab's diagram remotely and merges the result. Local
// edits are kept when the save fails.
func (s *Session) SaveTab(ctx context.Context, tabID domain.TabID) error {
	if err := s.requireRemote(); err != nil {
		return err
	}
	state := s.store.State()
	var tab domain.EditorTab
	found := false
	for _, t := range state.EditorPane.OpenTabs {
		if t.ID == tabID {
			tab, found = t, true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", domain.ErrTabNotFound, tabID)
	}

	sent := tab.EditorState.Content
	saved, err := s.remote.SaveDiagram(ctx, remotesync.SaveRequest{
		ProjectID: tab.ProjectID,
		DiagramID: tab.DiagramID,
		Title:     tab.Title,
		Content:   sent,
		Type:      tab.DiagramType,
	})
	if err != nil {
		return s.fail(fmt.Sprintf("Could not save %q", tab.Title), err, func(ctx context.Context) error {
			return s.SaveTab(ctx, tabID)
		})
	}

	a := NewDiagramSaved(tab.DiagramKey, saved, sent)
	a.SetSource(SourceRemote)
	res := s.store.Dispatch(a)
	if res.Err != nil {
		return res.Err
	}
	if t, ok := findTab(res.State, tabID); ok && !t.IsModified {
		s.deleteDraft(ctx, tab.IsolationKey)
	}
	log.Info(log.CatSync, "diagram saved", "project", saved.ProjectID, "diagram", saved.ID, "tab", tabID)
	return nil
}

// SaveCurrentProject saves every modified tab of the current project, then
// every modified diagram of it that has no open tab.
func (s *Session) SaveCurrentProject(ctx context.Context) error {
	state := s.store.State()
	if state.CurrentProject == nil {
		return domain.ErrProjectNotLoaded
	}
	var errs []error
	for _, t := range state.EditorPane.OpenTabs {
		if !t.IsModified || t.ProjectID != state.CurrentProject.ID {
			continue
		}
		if err := s.SaveTab(ctx, t.ID); err != nil {
			errs = append(errs, err)
		}
	}
	for _, d := range state.CurrentProject.Diagrams {
		if !d.IsModified || diagramOpen(state, d) {
			continue
		}
		if err := s.saveClosedDiagram(ctx, d.ID, d.LocalKey); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// saveClosedDiagram saves a modified diagram whose tab was closed. Its
// edits live in the autosave draft stashed when the tab went away.
func (s *Session) saveClosedDiagram(ctx context.Context, id domain.DiagramID, localKey string) error {
	if err := s.requireRemote(); err != nil {
		return err
	}
	state := s.store.State()
	p := state.CurrentProject
	if p == nil {
		return domain.ErrProjectNotLoaded
	}
	i := p.FindDiagram(id, localKey)
	if i < 0 {
		return fmt.Errorf("%w: %s", domain.ErrDiagramNotFound, id)
	}
	d := p.Diagrams[i]
	if !d.IsModified || diagramOpen(state, d) {
		return nil
	}

	key := contenthash.Hash(d.Content, d.Title)
	sent := d.Content
	if draft, ok := s.loadDraft(ctx, key, d); ok {
		sent = draft.Content
	}
	saved, err := s.remote.SaveDiagram(ctx, remotesync.SaveRequest{
		ProjectID: d.ProjectID,
		DiagramID: d.ID,
		Title:     d.Title,
		Content:   sent,
		Type:      d.Type,
	})
	if err != nil {
		return s.fail(fmt.Sprintf("Could not save %q", d.Title), err, func(ctx context.Context) error {
			return s.saveClosedDiagram(ctx, id, localKey)
		})
	}

	a := NewDiagramSaved(d.LocalKey, saved, sent)
	a.SetSource(SourceRemote)
	if res := s.store.Dispatch(a); res.Err != nil {
		return res.Err
	}
	s.deleteDraft(ctx, key)
	log.Info(log.CatSync, "closed diagram saved", "project", saved.ProjectID, "diagram", saved.ID)
	return nil
}

// loadDraft returns the autosave draft stored under key when it belongs to d.
func (s *Session) loadDraft(ctx context.Context, key string, d domain.Diagram) (persistence.Draft, bool) {
	if s.gateway == nil {
		return persistence.Draft{}, false
	}
	draft, ok, err := s.gateway.LoadDraft(ctx, key, contenthash.KindAutosave)
	if err != nil {
		log.ErrorErr(log.CatPersist, "reading autosave draft failed", err, "key", key)
		return persistence.Draft{}, false
	}
	if !ok || (draft.DiagramID != "" && draft.DiagramID != d.ID) {
		return persistence.Draft{}, false
	}
	return draft, true
}

func diagramOpen(state domain.WorkspaceState, d domain.Diagram) bool {
	for _, t := range state.EditorPane.OpenTabs {
		if d.Matches(t.DiagramID, t.DiagramKey) {
			return true
		}
	}
	return false
}

// DeleteDiagram deletes a diagram remotely, then locally.
func (s *Session) DeleteDiagram(ctx context.Context, projectID string, id domain.DiagramID) error {
	if err := s.requireRemote(); err != nil {
		return err
	}
	if err := s.remote.DeleteDiagram(ctx, projectID, id); err != nil {
		return s.fail("Could not delete diagram", err, func(ctx context.Context) error {
			return s.DeleteDiagram(ctx, projectID, id)
		})
	}
	a := NewDiagramDeleted(projectID, id)
	a.SetSource(SourceRemote)
	return s.store.Dispatch(a).Err
}

// Notify adds n to the workspace and shows it.
func (s *Session) Notify(n domain.Notification) {
	a := NewNotificationAdded(n)
	a.SetSource(SourceSystem)
	if res := s.store.Dispatch(a); res.Err != nil {
		return
	}
	s.notifier.Notify(a.Notification)
}

// Retry re-runs the operation that raised the notification and dismisses it.
func (s *Session) Retry(ctx context.Context, notificationID string) error {
	s.mu.Lock()
	fn, ok := s.retries[notificationID]
	delete(s.retries, notificationID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("notification %s has no retry action", notificationID)
	}
	s.store.Dispatch(NewNotificationRemoved(notificationID))
	return fn(ctx)
}

// RestoreFromStorage replaces the state with the stored snapshot. A corrupt
// or unsupported snapshot yields the default state and a warning.
func (s *Session) RestoreFromStorage(ctx context.Context) error {
	if s.gateway == nil {
		return nil
	}
	state, warning, err := s.gateway.LoadOrDefault(ctx)
	if err != nil {
		return err
	}
	a := NewStateRestored(state)
	a.SetSkipPersist(true)
	if res := s.store.Dispatch(a); res.Err != nil {
		return res.Err
	}
	if warning != nil {
		s.Notify(WarningNotification("Workspace could not be restored", warning))
	}
	return nil
}

// Reset returns the workspace to defaults.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.retries = make(map[string]func(context.Context) error)
	s.mu.Unlock()
	return s.store.Dispatch(NewStateReset()).Err
}

// fail reports err as a notification, remembering retry when the failure
// is retryable, and returns err.
func (s *Session) fail(title string, err error, retry func(context.Context) error) error {
	n := ErrorNotification(title, err)
	if retry != nil && n.HasAction(domain.ActionRetry) {
		s.mu.Lock()
		s.retries[n.ID] = retry
		s.mu.Unlock()
	}
	log.ErrorErr(log.CatSync, title, err, "category", n.Category)
	s.Notify(n)
	return err
}

func (s *Session) requireRemote() error {
	if s.remote == nil {
		return errors.New("no project service configured")
	}
	return nil
}

func successNotification(title, message string) domain.Notification {
	return domain.Notification{
		ID:      uuid.NewString(),
		Type:    domain.NotificationSuccess,
		Title:   title,
		Message: message,
	}
}

func findTab(state domain.WorkspaceState, id domain.TabID) (domain.EditorTab, bool) {
	for _, t := range state.EditorPane.OpenTabs {
		if t.ID == id {
			return t, true
		}
	}
	return domain.EditorTab{}, false
}
