package domain

import (
	"fmt"
	"time"
)

// Theme is the editor colour scheme.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

// SortField orders the diagrams listed in the navigation pane.
type SortField string

const (
	SortByName    SortField = "name"
	SortByUpdated SortField = "updated"
	SortByCreated SortField = "created"
	SortByType    SortField = "type"
)

// Valid reports whether f is a known sort field.
func (f SortField) Valid() bool {
	switch f {
	case SortByName, SortByUpdated, SortByCreated, SortByType:
		return true
	}
	return false
}

// Navigation pane width bounds in pixels.
const (
	MinNavigationWidth = 160
	MaxNavigationWidth = 640
)

// NavigationPane is the project tree shown beside the editor.
type NavigationPane struct {
	Collapsed         bool
	Width             int
	SelectedDiagramID DiagramID
	SearchQuery       string
	SortBy            SortField
	SortDescending    bool
}

// EditorPane holds the open tabs.
// NextSeq is the OpenedSeq the next opened tab receives.
type EditorPane struct {
	OpenTabs    []EditorTab
	ActiveTabID TabID
	TabOrder    []TabID
	NextSeq     int64
}

// Clone returns a deep copy of p.
func (p EditorPane) Clone() EditorPane {
	if p.OpenTabs != nil {
		tabs := make([]EditorTab, len(p.OpenTabs))
		for i, t := range p.OpenTabs {
			tabs[i] = t.Clone()
		}
		p.OpenTabs = tabs
	}
	if p.TabOrder != nil {
		p.TabOrder = append([]TabID{}, p.TabOrder...)
	}
	return p
}

// Settings are the user preferences that drive workspace behaviour.
type Settings struct {
	AutoSave         bool
	AutoSaveInterval time.Duration
	MaxTabs          int
	FontSize         int
	WordWrap         bool
	ShowLineNumbers  bool
}

// DefaultSettings returns the settings of a fresh workspace.
func DefaultSettings() Settings {
	return Settings{
		AutoSave:         true,
		AutoSaveInterval: 30 * time.Second,
		MaxTabs:          10,
		FontSize:         14,
		WordWrap:         true,
		ShowLineNumbers:  true,
	}
}

// NotificationType is the severity shown by the notification UI.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// NotificationAction is a button offered with a notification.
type NotificationAction struct {
	ID    string
	Label string
}

// ActionRetry is the id of the manual retry action attached to retryable failures.
const ActionRetry = "retry"

// Notification is a user-facing message held in the workspace.
type Notification struct {
	ID        string
	Type      NotificationType
	Category  Category
	Title     string
	Message   string
	Fields    map[string]string
	Actions   []NotificationAction
	CreatedAt time.Time
}

// Clone returns a deep copy of n.
func (n Notification) Clone() Notification {
	if n.Fields != nil {
		fields := make(map[string]string, len(n.Fields))
		for k, v := range n.Fields {
			fields[k] = v
		}
		n.Fields = fields
	}
	if n.Actions != nil {
		n.Actions = append([]NotificationAction{}, n.Actions...)
	}
	return n
}

// HasAction reports whether n offers the action with the given id.
func (n Notification) HasAction(id string) bool {
	for _, a := range n.Actions {
		if a.ID == id {
			return true
		}
	}
	return false
}

// MaxNotifications bounds WorkspaceState.Notifications; the oldest are dropped.
const MaxNotifications = 50

// WorkspaceState is the aggregate root of a workspace session.
type WorkspaceState struct {
	CurrentProject *Project
	ProjectList    []Project
	RecentProjects []RecentProject
	NavigationPane NavigationPane
	EditorPane     EditorPane
	Theme          Theme
	Settings       Settings
	Notifications  []Notification
	Revision       int64
}

// DefaultState returns the state of a workspace with nothing loaded.
func DefaultState() WorkspaceState {
	return WorkspaceState{
		ProjectList:    []Project{},
		RecentProjects: []RecentProject{},
		NavigationPane: NavigationPane{
			Width:  280,
			SortBy: SortByName,
		},
		EditorPane: EditorPane{
			OpenTabs: []EditorTab{},
			TabOrder: []TabID{},
		},
		Theme:         ThemeSystem,
		Settings:      DefaultSettings(),
		Notifications: []Notification{},
	}
}

// Clone returns a deep copy of s.
func (s WorkspaceState) Clone() WorkspaceState {
	if s.CurrentProject != nil {
		p := s.CurrentProject.Clone()
		s.CurrentProject = &p
	}
	if s.ProjectList != nil {
		list := make([]Project, len(s.ProjectList))
		for i, p := range s.ProjectList {
			list[i] = p.Clone()
		}
		s.ProjectList = list
	}
	if s.RecentProjects != nil {
		s.RecentProjects = append([]RecentProject{}, s.RecentProjects...)
	}
	s.EditorPane = s.EditorPane.Clone()
	if s.Notifications != nil {
		notes := make([]Notification, len(s.Notifications))
		for i, n := range s.Notifications {
			notes[i] = n.Clone()
		}
		s.Notifications = notes
	}
	return s
}

// ActiveTab returns the active tab, if any.
func (s WorkspaceState) ActiveTab() (EditorTab, bool) {
	for _, t := range s.EditorPane.OpenTabs {
		if t.ID == s.EditorPane.ActiveTabID && t.ID != "" {
			return t, true
		}
	}
	return EditorTab{}, false
}

// CheckInvariants verifies the workspace invariants and returns an
// *InvariantError listing every violation found.
func CheckInvariants(s WorkspaceState) error {
	var violations []string
	pane := s.EditorPane

	ids := make(map[TabID]struct{}, len(pane.OpenTabs))
	diagrams := make(map[DiagramID]TabID)
	keys := make(map[string]TabID)
	activeCount := 0
	for _, t := range pane.OpenTabs {
		if t.ID == "" {
			violations = append(violations, "open tab with empty id")
			continue
		}
		if _, dup := ids[t.ID]; dup {
			violations = append(violations, fmt.Sprintf("duplicate tab id %s", t.ID))
		}
		ids[t.ID] = struct{}{}

		if t.DiagramID != "" {
			if other, dup := diagrams[t.DiagramID]; dup {
				violations = append(violations, fmt.Sprintf("diagram %s open in tabs %s and %s", t.DiagramID, other, t.ID))
			}
			diagrams[t.DiagramID] = t.ID
		}
		if t.DiagramKey != "" {
			if other, dup := keys[t.DiagramKey]; dup {
				violations = append(violations, fmt.Sprintf("diagram key %s open in tabs %s and %s", t.DiagramKey, other, t.ID))
			}
			keys[t.DiagramKey] = t.ID
		}

		if t.IsActive {
			activeCount++
			if t.ID != pane.ActiveTabID {
				violations = append(violations, fmt.Sprintf("tab %s marked active but active tab is %q", t.ID, pane.ActiveTabID))
			}
		}
	}

	if len(pane.OpenTabs) == 0 {
		if pane.ActiveTabID != "" {
			violations = append(violations, fmt.Sprintf("active tab %s set with no open tabs", pane.ActiveTabID))
		}
	} else {
		if pane.ActiveTabID == "" {
			violations = append(violations, "no active tab while tabs are open")
		} else if _, ok := ids[pane.ActiveTabID]; !ok {
			violations = append(violations, fmt.Sprintf("active tab %s is not open", pane.ActiveTabID))
		}
		if activeCount != 1 {
			violations = append(violations, fmt.Sprintf("%d tabs marked active", activeCount))
		}
	}

	if len(pane.TabOrder) != len(pane.OpenTabs) {
		violations = append(violations, fmt.Sprintf("tab order has %d entries for %d open tabs", len(pane.TabOrder), len(pane.OpenTabs)))
	}
	seen := make(map[TabID]struct{}, len(pane.TabOrder))
	for _, id := range pane.TabOrder {
		if _, dup := seen[id]; dup {
			violations = append(violations, fmt.Sprintf("tab %s repeated in tab order", id))
		}
		seen[id] = struct{}{}
		if _, ok := ids[id]; !ok {
			violations = append(violations, fmt.Sprintf("tab order names unknown tab %s", id))
		}
	}

	if max := s.Settings.MaxTabs; max > 0 && len(pane.OpenTabs) > max {
		violations = append(violations, fmt.Sprintf("%d open tabs exceed limit %d", len(pane.OpenTabs), max))
	}
	violations = append(violations, textViolations(s)...)

	if len(violations) == 0 {
		return nil
	}
	return &InvariantError{Violations: violations}
}
