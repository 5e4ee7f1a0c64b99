package presentation

import (
	"time"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

// WorkspaceDTO represents a workspace snapshot for presentation
type WorkspaceDTO struct {
	Revision      int64             `json:"revision"`
	Theme         string            `json:"theme"`
	Project       *ProjectDTO       `json:"project,omitempty"`
	ActiveTab     string            `json:"active_tab,omitempty"`
	Tabs          []TabDTO          `json:"tabs"`
	Recent        []RecentDTO       `json:"recent"`
	Settings      SettingsDTO       `json:"settings"`
	Notifications []NotificationDTO `json:"notifications,omitempty"`
}

// ProjectDTO represents a project and its diagram titles
type ProjectDTO struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Diagrams    []DiagramDTO `json:"diagrams,omitempty"`
}

// DiagramDTO omits diagram content.
type DiagramDTO struct {
	ID       string `json:"id,omitempty"`
	LocalKey string `json:"local_key,omitempty"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Modified bool   `json:"modified,omitempty"`
}

// TabDTO represents one open editor tab, in tab order
type TabDTO struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	DiagramID    string `json:"diagram_id,omitempty"`
	IsolationKey string `json:"isolation_key"`
	Active       bool   `json:"active,omitempty"`
	Pinned       bool   `json:"pinned,omitempty"`
	Modified     bool   `json:"modified,omitempty"`
}

type RecentDTO struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	OpenedAt time.Time `json:"opened_at"`
}

type SettingsDTO struct {
	AutoSave         bool   `json:"auto_save"`
	AutoSaveInterval string `json:"auto_save_interval"`
	MaxTabs          int    `json:"max_tabs"`
}

type NotificationDTO struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Category string `json:"category,omitempty"`
	Title    string `json:"title"`
	Message  string `json:"message,omitempty"`
	Retry    bool   `json:"retry,omitempty"`
}

// HashDTO is the output of `diagramdesk hash`.
type HashDTO struct {
	IsolationKey string `json:"isolation_key"`
	AutosaveKey  string `json:"autosave_key"`
	ManualKey    string `json:"manual_key"`
}

// FromDomainWorkspace converts a workspace state to a DTO. Tabs are listed
// in TabOrder.
func FromDomainWorkspace(s domain.WorkspaceState) WorkspaceDTO {
	byID := make(map[domain.TabID]domain.EditorTab, len(s.EditorPane.OpenTabs))
	for _, t := range s.EditorPane.OpenTabs {
		byID[t.ID] = t
	}
	tabs := make([]TabDTO, 0, len(s.EditorPane.TabOrder))
	for _, id := range s.EditorPane.TabOrder {
		if t, ok := byID[id]; ok {
			tabs = append(tabs, FromDomainTab(t))
		}
	}

	recent := make([]RecentDTO, len(s.RecentProjects))
	for i, r := range s.RecentProjects {
		recent[i] = RecentDTO{ID: r.ID, Name: r.Name, OpenedAt: r.OpenedAt}
	}

	var notes []NotificationDTO
	for _, n := range s.Notifications {
		notes = append(notes, FromDomainNotification(n))
	}

	dto := WorkspaceDTO{
		Revision:  s.Revision,
		Theme:     string(s.Theme),
		ActiveTab: string(s.EditorPane.ActiveTabID),
		Tabs:      tabs,
		Recent:    recent,
		Settings: SettingsDTO{
			AutoSave:         s.Settings.AutoSave,
			AutoSaveInterval: s.Settings.AutoSaveInterval.String(),
			MaxTabs:          s.Settings.MaxTabs,
		},
		Notifications: notes,
	}
	if s.CurrentProject != nil {
		p := FromDomainProject(*s.CurrentProject)
		dto.Project = &p
	}
	return dto
}

// FromDomainProject converts a project to a DTO
func FromDomainProject(p domain.Project) ProjectDTO {
	diagrams := make([]DiagramDTO, len(p.Diagrams))
	for i, d := range p.Diagrams {
		diagrams[i] = DiagramDTO{
			ID:       string(d.ID),
			LocalKey: d.LocalKey,
			Title:    d.Title,
			Type:     string(d.Type),
			Modified: d.IsModified,
		}
	}
	return ProjectDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Diagrams:    diagrams,
	}
}

// FromDomainTab converts an editor tab to a DTO
func FromDomainTab(t domain.EditorTab) TabDTO {
	return TabDTO{
		ID:           string(t.ID),
		Title:        t.Title,
		DiagramID:    string(t.DiagramID),
		IsolationKey: t.IsolationKey,
		Active:       t.IsActive,
		Pinned:       t.IsPinned,
		Modified:     t.IsModified,
	}
}

// FromDomainNotification converts a notification to a DTO
func FromDomainNotification(n domain.Notification) NotificationDTO {
	retry := false
	for _, a := range n.Actions {
		if a.ID == domain.ActionRetry {
			retry = true
		}
	}
	return NotificationDTO{
		ID:       n.ID,
		Type:     string(n.Type),
		Category: string(n.Category),
		Title:    n.Title,
		Message:  n.Message,
		Retry:    retry,
	}
}
