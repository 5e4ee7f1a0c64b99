package testutil

import (
	"time"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

// WithStandardDiagrams adds the standard test dataset:
//
//	flow     flowchart, saved
//	seq      sequence, saved, cursor at 2:4
//	classes  class, saved, updated a day later
//	draft    flowchart, unsaved (local key "draft")
func (b *Builder) WithStandardDiagrams() *Builder {
	return b.
		WithDiagram("flow", Title("Flow"), Content("flowchart TD\nA-->B")).
		WithDiagram("seq", Title("Login sequence"), Type(domain.DiagramTypeSequence),
			Content("sequenceDiagram\nAlice->>Bob: hi"), LastCursor(2, 4)).
		WithDiagram("classes", Title("Model"), Type(domain.DiagramTypeClass),
			Content("classDiagram\nclass Tab"), UpdatedAt(Epoch.Add(24*time.Hour))).
		WithDiagram("draft", Title("Untitled"), Unsaved("draft"), Content("flowchart LR\nX"))
}
