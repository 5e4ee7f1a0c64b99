package workspace

import (
	"fmt"
	"time"

	"github.com/zjrosen/diagramdesk/internal/contenthash"
	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/tabs"
)

// Reduce computes the state that results from applying action to state.
//
// Reduce is pure: it never mutates state, takes all time from the action
// timestamp and all generated ids from the action payload. An error means
// the action cannot be applied and the caller keeps state. Revision is not
// touched; Dispatch owns it.
func Reduce(state domain.WorkspaceState, action Action) (domain.WorkspaceState, error) {
	next := state.Clone()
	at := action.CreatedAt()

	switch a := action.(type) {
	case *ProjectListLoaded:
		list := make([]domain.Project, 0, len(a.Projects))
		for _, p := range a.Projects {
			list = append(list, p.Summary())
		}
		next.ProjectList = list

	case *ProjectCreated:
		next.ProjectList = upsertProjectSummary(next.ProjectList, a.Project)
		loadProject(&next, a.Project, at)

	case *ProjectLoaded:
		next.ProjectList = upsertProjectSummary(next.ProjectList, a.Project)
		loadProject(&next, a.Project, at)

	case *ProjectUpdated:
		found := false
		for i := range next.ProjectList {
			if next.ProjectList[i].ID == a.ProjectID {
				next.ProjectList[i].Name = a.Name
				next.ProjectList[i].Description = a.Description
				next.ProjectList[i].UpdatedAt = at
				found = true
			}
		}
		if p := next.CurrentProject; p != nil && p.ID == a.ProjectID {
			p.Name = a.Name
			p.Description = a.Description
			p.UpdatedAt = at
			found = true
		}
		if !found {
			return state, fmt.Errorf("%w: %s", domain.ErrProjectNotFound, a.ProjectID)
		}
		for i := range next.RecentProjects {
			if next.RecentProjects[i].ID == a.ProjectID {
				next.RecentProjects[i].Name = a.Name
			}
		}

	case *ProjectClosed:
		next.CurrentProject = nil
		next.NavigationPane.SelectedDiagramID = ""

	case *ProjectRemoved:
		next.ProjectList = filter(next.ProjectList, func(p domain.Project) bool { return p.ID != a.ProjectID })
		next.RecentProjects = filter(next.RecentProjects, func(r domain.RecentProject) bool { return r.ID != a.ProjectID })
		if next.CurrentProject != nil && next.CurrentProject.ID == a.ProjectID {
			next.CurrentProject = nil
			next.NavigationPane.SelectedDiagramID = ""
		}
		store := tabStore(next, at, "")
		for _, t := range store.Tabs() {
			if t.ProjectID == a.ProjectID {
				store.CloseTab(t.ID)
			}
		}
		next.EditorPane = store.Pane()

	case *DiagramAdded:
		p, err := currentProject(&next, a.Diagram.ProjectID)
		if err != nil {
			return state, err
		}
		d := a.Diagram.Clone()
		if d.CreatedAt.IsZero() {
			d.CreatedAt = at
		}
		if d.UpdatedAt.IsZero() {
			d.UpdatedAt = at
		}
		if i := p.FindDiagram(d.ID, d.LocalKey); i >= 0 {
			p.Diagrams[i] = d
		} else {
			p.Diagrams = append(p.Diagrams, d)
		}

	case *DiagramSaved:
		if err := reduceDiagramSaved(&next, a, at); err != nil {
			return state, err
		}

	case *DiagramDeleted:
		if p := next.CurrentProject; p != nil && (a.ProjectID == "" || p.ID == a.ProjectID) {
			p.Diagrams = filter(p.Diagrams, func(d domain.Diagram) bool { return d.ID != a.DiagramID })
		}
		if next.NavigationPane.SelectedDiagramID == a.DiagramID {
			next.NavigationPane.SelectedDiagramID = ""
		}
		store := tabStore(next, at, "")
		if t, ok := store.FindByDiagram(a.DiagramID, ""); ok {
			store.CloseTab(t.ID)
			next.EditorPane = store.Pane()
		}

	case *NavigationToggled:
		next.NavigationPane.Collapsed = !next.NavigationPane.Collapsed

	case *NavigationResized:
		next.NavigationPane.Width = a.Width

	case *DiagramSelected:
		if a.DiagramID != "" {
			p := next.CurrentProject
			if p == nil {
				return state, domain.ErrProjectNotLoaded
			}
			if p.FindDiagram(a.DiagramID, "") < 0 {
				return state, fmt.Errorf("%w: %s", domain.ErrDiagramNotFound, a.DiagramID)
			}
		}
		next.NavigationPane.SelectedDiagramID = a.DiagramID

	case *SearchChanged:
		next.NavigationPane.SearchQuery = a.Query

	case *SortChanged:
		next.NavigationPane.SortBy = a.Field
		next.NavigationPane.SortDescending = a.Descending

	case *TabOpened:
		store := tabStore(next, at, a.TabID)
		tab, err := store.OpenTab(a.Diagram)
		if err != nil {
			return state, err
		}
		next.EditorPane = store.Pane()
		if tab.DiagramID != "" {
			next.NavigationPane.SelectedDiagramID = tab.DiagramID
		}

	case *TabClosed:
		store := tabStore(next, at, "")
		if _, ok := store.CloseTab(a.TabID); !ok {
			return state, tabNotFound(a.TabID)
		}
		next.EditorPane = store.Pane()

	case *TabSwitched:
		store := tabStore(next, at, "")
		if !store.SwitchToTab(a.TabID) {
			return state, tabNotFound(a.TabID)
		}
		next.EditorPane = store.Pane()
		if t, ok := store.Tab(a.TabID); ok && t.DiagramID != "" {
			next.NavigationPane.SelectedDiagramID = t.DiagramID
		}

	case *AllTabsClosed:
		store := tabStore(next, at, "")
		store.CloseAllTabs()
		next.EditorPane = store.Pane()

	case *OtherTabsClosed:
		store := tabStore(next, at, "")
		if !store.CloseOtherTabs(a.TabID) {
			return state, tabNotFound(a.TabID)
		}
		next.EditorPane = store.Pane()

	case *TabPinToggled:
		return applyTab(state, next, at, a.TabID, func(s *tabs.Store) bool { return s.ToggleTabPin(a.TabID) })

	case *TabReordered:
		return applyTab(state, next, at, a.TabID, func(s *tabs.Store) bool { return s.ReorderTab(a.TabID, a.Index) })

	case *TabModifiedSet:
		return applyTab(state, next, at, a.TabID, func(s *tabs.Store) bool { return s.SetTabModified(a.TabID, a.Modified) })

	case *TabContentUpdated:
		return applyTab(state, next, at, a.TabID, func(s *tabs.Store) bool { return s.UpdateTabContent(a.TabID, a.Content) })

	case *TabEditorStateUpdated:
		return applyTab(state, next, at, a.TabID, func(s *tabs.Store) bool { return s.UpdateTabEditorState(a.TabID, a.Patch) })

	case *TabUndo:
		// An empty history leaves the tab as it is.
		return applyTab(state, next, at, a.TabID, func(s *tabs.Store) bool { s.Undo(a.TabID); return true })

	case *TabRedo:
		return applyTab(state, next, at, a.TabID, func(s *tabs.Store) bool { s.Redo(a.TabID); return true })

	case *SettingsUpdated:
		settings := a.Patch.Apply(next.Settings)
		if settings.MaxTabs != next.Settings.MaxTabs {
			store := tabStore(next, at, "")
			if _, err := store.SetMaxTabs(settings.MaxTabs); err != nil {
				return state, err
			}
			next.EditorPane = store.Pane()
		}
		next.Settings = settings

	case *ThemeChanged:
		next.Theme = a.Theme

	case *NotificationAdded:
		n := a.Notification.Clone()
		if n.CreatedAt.IsZero() {
			n.CreatedAt = at
		}
		next.Notifications = filter(next.Notifications, func(x domain.Notification) bool { return x.ID != n.ID })
		next.Notifications = append(next.Notifications, n)
		if over := len(next.Notifications) - domain.MaxNotifications; over > 0 {
			next.Notifications = append([]domain.Notification{}, next.Notifications[over:]...)
		}

	case *NotificationRemoved:
		next.Notifications = filter(next.Notifications, func(n domain.Notification) bool { return n.ID != a.NotificationID })

	case *NotificationsCleared:
		next.Notifications = []domain.Notification{}

	case *StateRestored:
		restored := a.State.Clone()
		restored.Revision = state.Revision
		next = restored

	case *StateReset:
		reset := domain.DefaultState()
		reset.Revision = state.Revision
		next = reset

	default:
		return state, &domain.StructuralError{ActionType: string(action.Type()), Reason: "unknown action type"}
	}

	return next, nil
}

// tabStore rebuilds a tab store from the state's editor pane. Tabs it
// creates take their id from tabID and their timestamps from at.
func tabStore(state domain.WorkspaceState, at time.Time, tabID domain.TabID) *tabs.Store {
	return tabs.FromPane(state.EditorPane,
		tabs.WithMaxTabs(state.Settings.MaxTabs),
		tabs.WithClock(func() time.Time { return at }),
		tabs.WithIDGenerator(func() domain.TabID { return tabID }),
		tabs.WithIsolationKey(contenthash.Hash),
	)
}

// applyTab runs fn against the tab store and rejects the action when fn
// reports an unknown tab.
func applyTab(prev, next domain.WorkspaceState, at time.Time, id domain.TabID, fn func(*tabs.Store) bool) (domain.WorkspaceState, error) {
	store := tabStore(next, at, "")
	if _, ok := store.Tab(id); !ok || !fn(store) {
		return prev, tabNotFound(id)
	}
	next.EditorPane = store.Pane()
	return next, nil
}

func tabNotFound(id domain.TabID) error {
	return fmt.Errorf("%w: %s", domain.ErrTabNotFound, id)
}

// loadProject makes p the current project and records it as most recent.
// Unsaved diagrams of the project already loaded survive a reload.
func loadProject(state *domain.WorkspaceState, p domain.Project, at time.Time) {
	loaded := p.Clone()
	if loaded.Diagrams == nil {
		loaded.Diagrams = []domain.Diagram{}
	}
	if cur := state.CurrentProject; cur != nil && cur.ID == loaded.ID {
		for _, d := range cur.Diagrams {
			if !d.Saved() && loaded.FindDiagram("", d.LocalKey) < 0 {
				loaded.Diagrams = append(loaded.Diagrams, d)
			}
		}
	} else {
		state.NavigationPane.SelectedDiagramID = ""
	}
	state.CurrentProject = &loaded

	recent := []domain.RecentProject{{ID: loaded.ID, Name: loaded.Name, OpenedAt: at}}
	for _, r := range state.RecentProjects {
		if r.ID != loaded.ID {
			recent = append(recent, r)
		}
	}
	if len(recent) > domain.MaxRecentProjects {
		recent = recent[:domain.MaxRecentProjects]
	}
	state.RecentProjects = recent
}

func upsertProjectSummary(list []domain.Project, p domain.Project) []domain.Project {
	summary := p.Summary()
	for i := range list {
		if list[i].ID == p.ID {
			list[i] = summary
			return list
		}
	}
	return append(list, summary)
}

// currentProject returns the loaded project, which must be projectID when
// projectID is not empty.
func currentProject(state *domain.WorkspaceState, projectID string) (*domain.Project, error) {
	p := state.CurrentProject
	if p == nil {
		return nil, domain.ErrProjectNotLoaded
	}
	if projectID != "" && p.ID != projectID {
		return nil, fmt.Errorf("%w: %s is not the current project", domain.ErrProjectNotLoaded, projectID)
	}
	return p, nil
}

// reduceDiagramSaved merges the server copy of a saved diagram into the
// current project and the tab showing it. The tab stays modified when its
// content moved on after the save was sent.
func reduceDiagramSaved(next *domain.WorkspaceState, a *DiagramSaved, at time.Time) error {
	saved := a.Diagram.Clone()
	if saved.LocalKey == "" {
		saved.LocalKey = a.LocalKey
	}

	store := tabStore(*next, at, "")
	tab, hasTab := store.FindByDiagram(saved.ID, a.LocalKey)
	stale := hasTab && tab.EditorState.Content != a.SentContent

	if p := next.CurrentProject; p != nil && p.ID == saved.ProjectID {
		i := p.FindDiagram(saved.ID, a.LocalKey)
		if i >= 0 {
			old := p.Diagrams[i]
			if saved.LastCursor == nil {
				saved.LastCursor = old.LastCursor
			}
			if saved.LastScroll == nil {
				saved.LastScroll = old.LastScroll
			}
		}
		saved.IsModified = stale
		if stale {
			saved.Content = tab.EditorState.Content
		}
		if i >= 0 {
			p.Diagrams[i] = saved
		} else {
			p.Diagrams = append(p.Diagrams, saved)
		}
		if saved.UpdatedAt.After(p.UpdatedAt) {
			p.UpdatedAt = saved.UpdatedAt
		}
	}

	if !hasTab {
		return nil
	}
	if !store.RetargetTab(tab.ID, saved) {
		return &domain.InvariantError{Violations: []string{fmt.Sprintf("diagram %s already open in another tab", saved.ID)}}
	}
	if !stale {
		store.SetTabModified(tab.ID, false)
	}
	next.EditorPane = store.Pane()
	return nil
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}
