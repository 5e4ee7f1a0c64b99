// Package testutil provides builders for projects, diagrams and workspace
// states used across package tests.
package testutil

import (
	"github.com/zjrosen/diagramdesk/internal/domain"
)

// Builder accumulates a project and the workspace state around it.
type Builder struct {
	project  domain.Project
	others   []domain.Project
	settings *domain.Settings
	theme    domain.Theme
}

// NewBuilder starts a project named after id.
func NewBuilder(id string) *Builder {
	return &Builder{
		project: domain.Project{
			ID:        id,
			Name:      id,
			Diagrams:  []domain.Diagram{},
			CreatedAt: Epoch,
			UpdatedAt: Epoch,
		},
	}
}

// Named sets the project name and description.
func (b *Builder) Named(name, description string) *Builder {
	b.project.Name = name
	b.project.Description = description
	return b
}

// WithDiagram adds a diagram with optional configuration.
func (b *Builder) WithDiagram(id string, opts ...DiagramOption) *Builder {
	d := defaultDiagram(b.project.ID, id)
	for _, opt := range opts {
		opt(&d)
	}
	b.project.Diagrams = append(b.project.Diagrams, d)
	return b
}

// WithOtherProject adds a project summary to the project list.
func (b *Builder) WithOtherProject(id, name string) *Builder {
	b.others = append(b.others, domain.Project{ID: id, Name: name, CreatedAt: Epoch, UpdatedAt: Epoch})
	return b
}

// WithMaxTabs sets the tab limit of the built state.
func (b *Builder) WithMaxTabs(n int) *Builder {
	s := b.currentSettings()
	s.MaxTabs = n
	b.settings = &s
	return b
}

// WithAutoSave sets the autosave settings of the built state.
func (b *Builder) WithAutoSave(enabled bool) *Builder {
	s := b.currentSettings()
	s.AutoSave = enabled
	b.settings = &s
	return b
}

// WithTheme sets the theme of the built state.
func (b *Builder) WithTheme(t domain.Theme) *Builder {
	b.theme = t
	return b
}

// Project returns a copy of the built project.
func (b *Builder) Project() domain.Project {
	return b.project.Clone()
}

// Diagram returns the built diagram with the given id. It panics when the
// diagram was never added.
func (b *Builder) Diagram(id string) domain.Diagram {
	i := b.project.FindDiagram(domain.DiagramID(id), id)
	if i < 0 {
		panic("testutil: unknown diagram " + id)
	}
	return b.project.Diagrams[i].Clone()
}

// State returns a default workspace state with the project loaded.
func (b *Builder) State() domain.WorkspaceState {
	s := domain.DefaultState()
	p := b.project.Clone()
	s.CurrentProject = &p
	s.ProjectList = append(s.ProjectList, p.Summary())
	for _, o := range b.others {
		s.ProjectList = append(s.ProjectList, o)
	}
	s.RecentProjects = append(s.RecentProjects, domain.RecentProject{ID: p.ID, Name: p.Name, OpenedAt: Epoch})
	if b.settings != nil {
		s.Settings = *b.settings
	}
	if b.theme != "" {
		s.Theme = b.theme
	}
	return s
}

func (b *Builder) currentSettings() domain.Settings {
	if b.settings != nil {
		return *b.settings
	}
	return domain.DefaultSettings()
}
