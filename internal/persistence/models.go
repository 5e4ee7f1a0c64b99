package persistence

import (
	"fmt"
	"time"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

// Snapshot JSON models. Slices keep nil and empty distinct (null vs []) so
// a decoded snapshot deep-equals the state it was encoded from.

type envelopeModel struct {
	Version int         `json:"version"`
	SavedAt string      `json:"savedAt"`
	State   *stateModel `json:"state"`
}

type stateModel struct {
	CurrentProject *projectModel       `json:"currentProject"`
	ProjectList    []projectModel      `json:"projectList"`
	RecentProjects []recentModel       `json:"recentProjects"`
	NavigationPane *navigationModel    `json:"navigationPane"`
	EditorPane     *editorPaneModel    `json:"editorPane"`
	Theme          string              `json:"theme"`
	Settings       *settingsModel      `json:"settings"`
	Notifications  []notificationModel `json:"notifications"`
	Revision       int64               `json:"revision"`
}

type projectModel struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Diagrams    []diagramModel `json:"diagrams"`
	CreatedAt   string         `json:"createdAt"`
	UpdatedAt   string         `json:"updatedAt"`
}

type diagramModel struct {
	ID         string       `json:"id"`
	LocalKey   string       `json:"localKey"`
	ProjectID  string       `json:"projectId"`
	Title      string       `json:"title"`
	Content    string       `json:"content"`
	Type       string       `json:"type"`
	IsModified bool         `json:"isModified"`
	CreatedAt  string       `json:"createdAt"`
	UpdatedAt  string       `json:"updatedAt"`
	LastCursor *cursorModel `json:"lastCursor"`
	LastScroll *scrollModel `json:"lastScroll"`
}

type recentModel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	OpenedAt string `json:"openedAt"`
}

type navigationModel struct {
	Collapsed         bool   `json:"collapsed"`
	Width             int    `json:"width"`
	SelectedDiagramID string `json:"selectedDiagramId"`
	SearchQuery       string `json:"searchQuery"`
	SortBy            string `json:"sortBy"`
	SortDescending    bool   `json:"sortDescending"`
}

type editorPaneModel struct {
	OpenTabs    []tabModel `json:"openTabs"`
	ActiveTabID *string    `json:"activeTabId"`
	TabOrder    []string   `json:"tabOrder"`
	NextSeq     int64      `json:"nextSeq"`
}

type tabModel struct {
	ID           string           `json:"id"`
	DiagramID    *string          `json:"diagramId"`
	DiagramKey   string           `json:"diagramKey"`
	ProjectID    string           `json:"projectId"`
	Title        string           `json:"title"`
	DiagramType  string           `json:"diagramType"`
	IsolationKey string           `json:"isolationKey"`
	IsModified   bool             `json:"isModified"`
	IsActive     bool             `json:"isActive"`
	IsPinned     bool             `json:"isPinned"`
	EditorState  editorStateModel `json:"editorState"`
	LastAccessed string           `json:"lastAccessed"`
	OpenedSeq    int64            `json:"openedSeq"`
}

type editorStateModel struct {
	Content   string          `json:"content"`
	Cursor    cursorModel     `json:"cursor"`
	Scroll    scrollModel     `json:"scroll"`
	Selection *selectionModel `json:"selection"`
	Undo      []string        `json:"undo"`
	Redo      []string        `json:"redo"`
}

type cursorModel struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type scrollModel struct {
	Top  int `json:"top"`
	Left int `json:"left"`
}

type selectionModel struct {
	Start cursorModel `json:"start"`
	End   cursorModel `json:"end"`
}

type settingsModel struct {
	AutoSave         bool   `json:"autoSave"`
	AutoSaveInterval string `json:"autoSaveInterval"`
	MaxTabs          int    `json:"maxTabs"`
	FontSize         int    `json:"fontSize"`
	WordWrap         bool   `json:"wordWrap"`
	ShowLineNumbers  bool   `json:"showLineNumbers"`
}

type notificationModel struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Category  string            `json:"category"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields"`
	Actions   []actionModel     `json:"actions"`
	CreatedAt string            `json:"createdAt"`
}

type actionModel struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// formatTime renders t in the canonical snapshot form.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a canonical snapshot date. field names the value in errors.
func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, &domain.CorruptStateError{Reason: fmt.Sprintf("invalid date in %s", field), Err: err}
	}
	return t.UTC(), nil
}

func mapSlice[T, U any](in []T, fn func(T) U) []U {
	if in == nil {
		return nil
	}
	out := make([]U, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}

func mapSliceErr[T, U any](in []T, fn func(int, T) (U, error)) ([]U, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]U, len(in))
	for i, v := range in {
		u, err := fn(i, v)
		if err != nil {
			return nil, err
		}
		out[i] = u
	}
	return out, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// toStateModel converts a domain WorkspaceState to its snapshot model.
func toStateModel(s domain.WorkspaceState) *stateModel {
	m := &stateModel{
		ProjectList:    mapSlice(s.ProjectList, toProjectModel),
		RecentProjects: mapSlice(s.RecentProjects, toRecentModel),
		NavigationPane: &navigationModel{
			Collapsed:         s.NavigationPane.Collapsed,
			Width:             s.NavigationPane.Width,
			SelectedDiagramID: string(s.NavigationPane.SelectedDiagramID),
			SearchQuery:       s.NavigationPane.SearchQuery,
			SortBy:            string(s.NavigationPane.SortBy),
			SortDescending:    s.NavigationPane.SortDescending,
		},
		EditorPane: &editorPaneModel{
			OpenTabs:    mapSlice(s.EditorPane.OpenTabs, toTabModel),
			ActiveTabID: optionalString(string(s.EditorPane.ActiveTabID)),
			TabOrder:    mapSlice(s.EditorPane.TabOrder, func(id domain.TabID) string { return string(id) }),
			NextSeq:     s.EditorPane.NextSeq,
		},
		Theme: string(s.Theme),
		Settings: &settingsModel{
			AutoSave:         s.Settings.AutoSave,
			AutoSaveInterval: s.Settings.AutoSaveInterval.String(),
			MaxTabs:          s.Settings.MaxTabs,
			FontSize:         s.Settings.FontSize,
			WordWrap:         s.Settings.WordWrap,
			ShowLineNumbers:  s.Settings.ShowLineNumbers,
		},
		Notifications: mapSlice(s.Notifications, toNotificationModel),
		Revision:      s.Revision,
	}
	if s.CurrentProject != nil {
		p := toProjectModel(*s.CurrentProject)
		m.CurrentProject = &p
	}
	return m
}

func toProjectModel(p domain.Project) projectModel {
	return projectModel{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Diagrams:    mapSlice(p.Diagrams, toDiagramModel),
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}

func toDiagramModel(d domain.Diagram) diagramModel {
	m := diagramModel{
		ID:         string(d.ID),
		LocalKey:   d.LocalKey,
		ProjectID:  d.ProjectID,
		Title:      d.Title,
		Content:    d.Content,
		Type:       string(d.Type),
		IsModified: d.IsModified,
		CreatedAt:  formatTime(d.CreatedAt),
		UpdatedAt:  formatTime(d.UpdatedAt),
	}
	if d.LastCursor != nil {
		m.LastCursor = &cursorModel{Line: d.LastCursor.Line, Column: d.LastCursor.Column}
	}
	if d.LastScroll != nil {
		m.LastScroll = &scrollModel{Top: d.LastScroll.Top, Left: d.LastScroll.Left}
	}
	return m
}

func toRecentModel(r domain.RecentProject) recentModel {
	return recentModel{ID: r.ID, Name: r.Name, OpenedAt: formatTime(r.OpenedAt)}
}

func toTabModel(t domain.EditorTab) tabModel {
	st := t.EditorState
	m := tabModel{
		ID:           string(t.ID),
		DiagramID:    optionalString(string(t.DiagramID)),
		DiagramKey:   t.DiagramKey,
		ProjectID:    t.ProjectID,
		Title:        t.Title,
		DiagramType:  string(t.DiagramType),
		IsolationKey: t.IsolationKey,
		IsModified:   t.IsModified,
		IsActive:     t.IsActive,
		IsPinned:     t.IsPinned,
		EditorState: editorStateModel{
			Content: st.Content,
			Cursor:  cursorModel{Line: st.Cursor.Line, Column: st.Cursor.Column},
			Scroll:  scrollModel{Top: st.Scroll.Top, Left: st.Scroll.Left},
			Undo:    st.Undo,
			Redo:    st.Redo,
		},
		LastAccessed: formatTime(t.LastAccessed),
		OpenedSeq:    t.OpenedSeq,
	}
	if st.Selection != nil {
		m.EditorState.Selection = &selectionModel{
			Start: cursorModel{Line: st.Selection.Start.Line, Column: st.Selection.Start.Column},
			End:   cursorModel{Line: st.Selection.End.Line, Column: st.Selection.End.Column},
		}
	}
	return m
}

func toNotificationModel(n domain.Notification) notificationModel {
	return notificationModel{
		ID:        n.ID,
		Type:      string(n.Type),
		Category:  string(n.Category),
		Title:     n.Title,
		Message:   n.Message,
		Fields:    n.Fields,
		Actions:   mapSlice(n.Actions, func(a domain.NotificationAction) actionModel { return actionModel{ID: a.ID, Label: a.Label} }),
		CreatedAt: formatTime(n.CreatedAt),
	}
}

// toDomain converts a snapshot model back to a WorkspaceState.
func (m *stateModel) toDomain() (domain.WorkspaceState, error) {
	var s domain.WorkspaceState
	var err error

	if m.CurrentProject != nil {
		p, err := m.CurrentProject.toDomain("currentProject")
		if err != nil {
			return s, err
		}
		s.CurrentProject = &p
	}
	s.ProjectList, err = mapSliceErr(m.ProjectList, func(i int, p projectModel) (domain.Project, error) {
		return p.toDomain(fmt.Sprintf("projectList[%d]", i))
	})
	if err != nil {
		return s, err
	}
	s.RecentProjects, err = mapSliceErr(m.RecentProjects, func(i int, r recentModel) (domain.RecentProject, error) {
		at, err := parseTime(fmt.Sprintf("recentProjects[%d].openedAt", i), r.OpenedAt)
		return domain.RecentProject{ID: r.ID, Name: r.Name, OpenedAt: at}, err
	})
	if err != nil {
		return s, err
	}

	nav := m.NavigationPane
	s.NavigationPane = domain.NavigationPane{
		Collapsed:         nav.Collapsed,
		Width:             nav.Width,
		SelectedDiagramID: domain.DiagramID(nav.SelectedDiagramID),
		SearchQuery:       nav.SearchQuery,
		SortBy:            domain.SortField(nav.SortBy),
		SortDescending:    nav.SortDescending,
	}

	pane := m.EditorPane
	s.EditorPane.OpenTabs, err = mapSliceErr(pane.OpenTabs, func(i int, t tabModel) (domain.EditorTab, error) {
		return t.toDomain(fmt.Sprintf("editorPane.openTabs[%d]", i))
	})
	if err != nil {
		return s, err
	}
	s.EditorPane.ActiveTabID = domain.TabID(derefString(pane.ActiveTabID))
	s.EditorPane.TabOrder = mapSlice(pane.TabOrder, func(id string) domain.TabID { return domain.TabID(id) })
	s.EditorPane.NextSeq = pane.NextSeq

	interval, err := time.ParseDuration(m.Settings.AutoSaveInterval)
	if err != nil {
		return s, &domain.CorruptStateError{Reason: "invalid settings.autoSaveInterval", Err: err}
	}
	s.Theme = domain.Theme(m.Theme)
	s.Settings = domain.Settings{
		AutoSave:         m.Settings.AutoSave,
		AutoSaveInterval: interval,
		MaxTabs:          m.Settings.MaxTabs,
		FontSize:         m.Settings.FontSize,
		WordWrap:         m.Settings.WordWrap,
		ShowLineNumbers:  m.Settings.ShowLineNumbers,
	}

	s.Notifications, err = mapSliceErr(m.Notifications, func(i int, n notificationModel) (domain.Notification, error) {
		at, err := parseTime(fmt.Sprintf("notifications[%d].createdAt", i), n.CreatedAt)
		return domain.Notification{
			ID:       n.ID,
			Type:     domain.NotificationType(n.Type),
			Category: domain.Category(n.Category),
			Title:    n.Title,
			Message:  n.Message,
			Fields:   n.Fields,
			Actions: mapSlice(n.Actions, func(a actionModel) domain.NotificationAction {
				return domain.NotificationAction{ID: a.ID, Label: a.Label}
			}),
			CreatedAt: at,
		}, err
	})
	if err != nil {
		return s, err
	}
	s.Revision = m.Revision
	return s, nil
}

func (m projectModel) toDomain(field string) (domain.Project, error) {
	created, err := parseTime(field+".createdAt", m.CreatedAt)
	if err != nil {
		return domain.Project{}, err
	}
	updated, err := parseTime(field+".updatedAt", m.UpdatedAt)
	if err != nil {
		return domain.Project{}, err
	}
	diagrams, err := mapSliceErr(m.Diagrams, func(i int, d diagramModel) (domain.Diagram, error) {
		return d.toDomain(fmt.Sprintf("%s.diagrams[%d]", field, i))
	})
	if err != nil {
		return domain.Project{}, err
	}
	return domain.Project{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Diagrams:    diagrams,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func (m diagramModel) toDomain(field string) (domain.Diagram, error) {
	created, err := parseTime(field+".createdAt", m.CreatedAt)
	if err != nil {
		return domain.Diagram{}, err
	}
	updated, err := parseTime(field+".updatedAt", m.UpdatedAt)
	if err != nil {
		return domain.Diagram{}, err
	}
	d := domain.Diagram{
		ID:         domain.DiagramID(m.ID),
		LocalKey:   m.LocalKey,
		ProjectID:  m.ProjectID,
		Title:      m.Title,
		Content:    m.Content,
		Type:       domain.DiagramType(m.Type),
		IsModified: m.IsModified,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}
	if m.LastCursor != nil {
		d.LastCursor = &domain.Cursor{Line: m.LastCursor.Line, Column: m.LastCursor.Column}
	}
	if m.LastScroll != nil {
		d.LastScroll = &domain.Scroll{Top: m.LastScroll.Top, Left: m.LastScroll.Left}
	}
	return d, nil
}

func (m tabModel) toDomain(field string) (domain.EditorTab, error) {
	if m.ID == "" {
		return domain.EditorTab{}, &domain.CorruptStateError{Reason: field + ".id is required"}
	}
	accessed, err := parseTime(field+".lastAccessed", m.LastAccessed)
	if err != nil {
		return domain.EditorTab{}, err
	}
	st := m.EditorState
	t := domain.EditorTab{
		ID:           domain.TabID(m.ID),
		DiagramID:    domain.DiagramID(derefString(m.DiagramID)),
		DiagramKey:   m.DiagramKey,
		ProjectID:    m.ProjectID,
		Title:        m.Title,
		DiagramType:  domain.DiagramType(m.DiagramType),
		IsolationKey: m.IsolationKey,
		IsModified:   m.IsModified,
		IsActive:     m.IsActive,
		IsPinned:     m.IsPinned,
		EditorState: domain.EditorState{
			Content: st.Content,
			Cursor:  domain.Cursor{Line: st.Cursor.Line, Column: st.Cursor.Column},
			Scroll:  domain.Scroll{Top: st.Scroll.Top, Left: st.Scroll.Left},
			Undo:    st.Undo,
			Redo:    st.Redo,
		},
		LastAccessed: accessed,
		OpenedSeq:    m.OpenedSeq,
	}
	if st.Selection != nil {
		t.EditorState.Selection = &domain.Selection{
			Start: domain.Cursor{Line: st.Selection.Start.Line, Column: st.Selection.Start.Column},
			End:   domain.Cursor{Line: st.Selection.End.Line, Column: st.Selection.End.Column},
		}
	}
	return t, nil
}
