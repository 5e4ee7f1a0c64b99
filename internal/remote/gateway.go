// Package remote talks to the project service that holds the canonical
// copy of every project and diagram.
package remote

import (
	"context"
	"errors"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

// ErrNotFound is wrapped by RemoteErrors for missing projects or diagrams.
var ErrNotFound = errors.New("not found")

// DiagramInput is the writable part of a diagram.
type DiagramInput struct {
	Title   string
	Content string
	Type    domain.DiagramType
}

// Gateway is the remote project API. Every failure is a *domain.RemoteError.
type Gateway interface {
	CreateProject(ctx context.Context, id, name, description string) (domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	GetProjectOutline(ctx context.Context, projectID string) (domain.Project, error)
	AddDiagram(ctx context.Context, projectID string, in DiagramInput) (domain.Diagram, error)
	UpdateDiagram(ctx context.Context, projectID string, id domain.DiagramID, in DiagramInput) (domain.Diagram, error)
	GetDiagram(ctx context.Context, projectID string, id domain.DiagramID) (domain.Diagram, error)
	ListDiagrams(ctx context.Context, projectID string) ([]domain.Diagram, error)
	DeleteDiagram(ctx context.Context, projectID string, id domain.DiagramID) error
}

// Operation names used in errors, logs and span attributes.
const (
	OpCreateProject     = "CreateProject"
	OpListProjects      = "ListProjects"
	OpGetProjectOutline = "GetProjectOutline"
	OpAddDiagram        = "AddDiagram"
	OpUpdateDiagram     = "UpdateDiagram"
	OpGetDiagram        = "GetDiagram"
	OpListDiagrams      = "ListDiagrams"
	OpDeleteDiagram     = "DeleteDiagram"
)
