package remote

import (
	"time"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

// Envelope is the JSON body of every project service response.
type Envelope struct {
	OK       bool              `json:"ok"`
	Error    string            `json:"error,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Project  *ProjectPayload   `json:"project,omitempty"`
	Projects []ProjectPayload  `json:"projects,omitempty"`
	Diagram  *DiagramPayload   `json:"diagram,omitempty"`
	Diagrams []DiagramPayload  `json:"diagrams,omitempty"`
}

type ProjectPayload struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Diagrams    []DiagramPayload `json:"diagrams,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

type DiagramPayload struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateProjectRequest is the body of POST /projects.
type CreateProjectRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DiagramRequest is the body of POST and PUT on diagrams.
type DiagramRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

func (p ProjectPayload) ToDomain() domain.Project {
	project := domain.Project{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
	if p.Diagrams != nil {
		project.Diagrams = make([]domain.Diagram, len(p.Diagrams))
		for i, d := range p.Diagrams {
			project.Diagrams[i] = d.ToDomain()
		}
	}
	return project
}

func (d DiagramPayload) ToDomain() domain.Diagram {
	return domain.Diagram{
		ID:        domain.DiagramID(d.ID),
		ProjectID: d.ProjectID,
		Title:     d.Title,
		Content:   d.Content,
		Type:      domain.DiagramType(d.Type),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// ProjectFromDomain converts p for the wire. withDiagrams selects the
// outline shape over the summary shape.
func ProjectFromDomain(p domain.Project, withDiagrams bool) ProjectPayload {
	out := ProjectPayload{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if withDiagrams {
		out.Diagrams = make([]DiagramPayload, len(p.Diagrams))
		for i, d := range p.Diagrams {
			out.Diagrams[i] = DiagramFromDomain(d)
		}
	}
	return out
}

func DiagramFromDomain(d domain.Diagram) DiagramPayload {
	return DiagramPayload{
		ID:        string(d.ID),
		ProjectID: d.ProjectID,
		Title:     d.Title,
		Content:   d.Content,
		Type:      string(d.Type),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (in DiagramInput) request() DiagramRequest {
	return DiagramRequest{Title: in.Title, Content: in.Content, Type: string(in.Type)}
}
