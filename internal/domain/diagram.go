package domain

import "time"

// DiagramID is the server-assigned identifier of a diagram.
// It is empty until the diagram has been saved remotely once.
type DiagramID string

// DiagramType tags the notation a diagram's source is written in.
type DiagramType string

const (
	DiagramTypeFlowchart DiagramType = "flowchart"
	DiagramTypeSequence  DiagramType = "sequence"
	DiagramTypeClass     DiagramType = "class"
	DiagramTypeState     DiagramType = "state"
	DiagramTypeER        DiagramType = "er"
	DiagramTypeGantt     DiagramType = "gantt"
	DiagramTypeMindmap   DiagramType = "mindmap"
	DiagramTypeOther     DiagramType = "other"
)

// Valid reports whether t is one of the known diagram types.
func (t DiagramType) Valid() bool {
	switch t {
	case DiagramTypeFlowchart, DiagramTypeSequence, DiagramTypeClass, DiagramTypeState,
		DiagramTypeER, DiagramTypeGantt, DiagramTypeMindmap, DiagramTypeOther:
		return true
	}
	return false
}

// Diagram is a named unit of editable content owned by a Project.
type Diagram struct {
	ID         DiagramID
	LocalKey   string // client-generated, identifies the diagram before it has an ID
	ProjectID  string
	Title      string
	Content    string
	Type       DiagramType
	IsModified bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastCursor *Cursor
	LastScroll *Scroll
}

// Saved reports whether the diagram has a server-assigned identifier.
func (d Diagram) Saved() bool {
	return d.ID != ""
}

// Matches reports whether d is the diagram identified by id, or by localKey
// when id is empty.
func (d Diagram) Matches(id DiagramID, localKey string) bool {
	if id != "" && d.ID == id {
		return true
	}
	return localKey != "" && d.LocalKey == localKey
}

// Clone returns a deep copy of d.
func (d Diagram) Clone() Diagram {
	if d.LastCursor != nil {
		c := *d.LastCursor
		d.LastCursor = &c
	}
	if d.LastScroll != nil {
		s := *d.LastScroll
		d.LastScroll = &s
	}
	return d
}

// Project groups diagrams under a name.
type Project struct {
	ID          string
	Name        string
	Description string
	Diagrams    []Diagram
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy of p.
func (p Project) Clone() Project {
	if p.Diagrams != nil {
		diagrams := make([]Diagram, len(p.Diagrams))
		for i, d := range p.Diagrams {
			diagrams[i] = d.Clone()
		}
		p.Diagrams = diagrams
	}
	return p
}

// FindDiagram returns the index of the diagram matching id or localKey, or -1.
func (p Project) FindDiagram(id DiagramID, localKey string) int {
	for i, d := range p.Diagrams {
		if d.Matches(id, localKey) {
			return i
		}
	}
	return -1
}

// Summary returns p without its diagrams, as held in the project list.
func (p Project) Summary() Project {
	p.Diagrams = nil
	return p
}

// RecentProject is an entry in the most-recently-opened list.
type RecentProject struct {
	ID       string
	Name     string
	OpenedAt time.Time
}

// MaxRecentProjects bounds WorkspaceState.RecentProjects.
const MaxRecentProjects = 10
