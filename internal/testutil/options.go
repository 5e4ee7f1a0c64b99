package testutil

import (
	"time"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

// Epoch is the default timestamp of built entities.
var Epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// DiagramOption configures a diagram during builder setup.
type DiagramOption func(*domain.Diagram)

// defaultDiagram returns a saved flowchart titled after its id.
func defaultDiagram(projectID, id string) domain.Diagram {
	return domain.Diagram{
		ID:        domain.DiagramID(id),
		ProjectID: projectID,
		Title:     id,
		Content:   "flowchart TD\n" + id + "-->end",
		Type:      domain.DiagramTypeFlowchart,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
}

// Title sets the diagram title.
func Title(title string) DiagramOption {
	return func(d *domain.Diagram) { d.Title = title }
}

// Content sets the diagram source.
func Content(content string) DiagramOption {
	return func(d *domain.Diagram) { d.Content = content }
}

// Type sets the diagram type.
func Type(t domain.DiagramType) DiagramOption {
	return func(d *domain.Diagram) { d.Type = t }
}

// Unsaved clears the id and identifies the diagram by localKey instead.
func Unsaved(localKey string) DiagramOption {
	return func(d *domain.Diagram) {
		d.ID = ""
		d.LocalKey = localKey
		d.IsModified = true
	}
}

// Modified sets the modified flag.
func Modified(m bool) DiagramOption {
	return func(d *domain.Diagram) { d.IsModified = m }
}

// CreatedAt sets the creation timestamp.
func CreatedAt(t time.Time) DiagramOption {
	return func(d *domain.Diagram) { d.CreatedAt = t }
}

// UpdatedAt sets the update timestamp.
func UpdatedAt(t time.Time) DiagramOption {
	return func(d *domain.Diagram) { d.UpdatedAt = t }
}

// LastCursor sets the last known cursor position.
func LastCursor(line, column int) DiagramOption {
	return func(d *domain.Diagram) { d.LastCursor = &domain.Cursor{Line: line, Column: column} }
}

// Diagram builds a standalone diagram of project "p1".
func Diagram(id string, opts ...DiagramOption) domain.Diagram {
	d := defaultDiagram("p1", id)
	for _, opt := range opts {
		opt(&d)
	}
	return d
}
