// Package projectservice is an in-memory implementation of the remote
// project API, served over HTTP with gin. It backs `diagramdesk projectd`
// and the HTTP client tests.
package projectservice

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrDiagramNotFound = errors.New("diagram not found")
	ErrProjectExists   = errors.New("project already exists")
)

// Store holds projects and their diagrams in memory.
type Store struct {
	mu       sync.RWMutex
	projects map[string]*domain.Project
	now      func() time.Time
	newID    func() string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		projects: make(map[string]*domain.Project),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// CreateProject creates a project. An empty id is generated.
func (s *Store) CreateProject(id, name, description string) (domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Project{}, &domain.ValidationError{
			Message: "invalid project",
			Fields:  map[string]string{"name": "required"},
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = s.newID()
	}
	if _, exists := s.projects[id]; exists {
		return domain.Project{}, ErrProjectExists
	}

	now := s.now()
	p := &domain.Project{
		ID:          id,
		Name:        name,
		Description: description,
		Diagrams:    []domain.Diagram{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.projects[id] = p
	return p.Clone(), nil
}

// ListProjects returns project summaries ordered by creation time.
func (s *Store) ListProjects() []domain.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Project returns the project with its diagrams.
func (s *Store) Project(id string) (domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return domain.Project{}, ErrProjectNotFound
	}
	return p.Clone(), nil
}

// AddDiagram creates a diagram in the project and assigns its id.
func (s *Store) AddDiagram(projectID, title, content string, typ domain.DiagramType) (domain.Diagram, error) {
	if err := validateDiagram(title, typ); err != nil {
		return domain.Diagram{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return domain.Diagram{}, ErrProjectNotFound
	}

	now := s.now()
	d := domain.Diagram{
		ID:        domain.DiagramID(s.newID()),
		ProjectID: projectID,
		Title:     strings.TrimSpace(title),
		Content:   content,
		Type:      typ,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.Diagrams = append(p.Diagrams, d)
	p.UpdatedAt = now
	return d.Clone(), nil
}

// UpdateDiagram replaces the diagram's title, content and type.
func (s *Store) UpdateDiagram(projectID string, id domain.DiagramID, title, content string, typ domain.DiagramType) (domain.Diagram, error) {
	if err := validateDiagram(title, typ); err != nil {
		return domain.Diagram{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return domain.Diagram{}, ErrProjectNotFound
	}
	i := p.FindDiagram(id, "")
	if i < 0 {
		return domain.Diagram{}, ErrDiagramNotFound
	}

	now := s.now()
	d := &p.Diagrams[i]
	d.Title = strings.TrimSpace(title)
	d.Content = content
	d.Type = typ
	d.UpdatedAt = now
	p.UpdatedAt = now
	return d.Clone(), nil
}

// Diagram returns one diagram.
func (s *Store) Diagram(projectID string, id domain.DiagramID) (domain.Diagram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[projectID]
	if !ok {
		return domain.Diagram{}, ErrProjectNotFound
	}
	i := p.FindDiagram(id, "")
	if i < 0 {
		return domain.Diagram{}, ErrDiagramNotFound
	}
	return p.Diagrams[i].Clone(), nil
}

// DeleteDiagram removes a diagram.
func (s *Store) DeleteDiagram(projectID string, id domain.DiagramID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return ErrProjectNotFound
	}
	i := p.FindDiagram(id, "")
	if i < 0 {
		return ErrDiagramNotFound
	}
	p.Diagrams = append(p.Diagrams[:i], p.Diagrams[i+1:]...)
	p.UpdatedAt = s.now()
	return nil
}

func validateDiagram(title string, typ domain.DiagramType) error {
	fields := map[string]string{}
	if strings.TrimSpace(title) == "" {
		fields["title"] = "required"
	}
	if !typ.Valid() {
		fields["type"] = "unknown diagram type"
	}
	if len(fields) == 0 {
		return nil
	}
	return &domain.ValidationError{Message: "invalid diagram", Fields: fields}
}
