package domain

import "time"

// TabID identifies an open tab. Tab ids are generated locally and never
// leave the process except inside a persisted snapshot.
type TabID string

// Cursor is a zero-based line/column position in the editor.
type Cursor struct {
	Line   int
	Column int
}

// Scroll is the editor viewport offset in pixels.
type Scroll struct {
	Top  int
	Left int
}

// Selection is a text range in the editor.
type Selection struct {
	Start Cursor
	End   Cursor
}

// MaxHistory bounds the undo and redo stacks of an EditorState.
const MaxHistory = 100

// EditorState is the editing session embedded in a tab.
// Undo and Redo hold patch texts, newest last.
type EditorState struct {
	Content   string
	Cursor    Cursor
	Scroll    Scroll
	Selection *Selection
	Undo      []string
	Redo      []string
}

// Clone returns a deep copy of s.
func (s EditorState) Clone() EditorState {
	if s.Selection != nil {
		sel := *s.Selection
		s.Selection = &sel
	}
	if s.Undo != nil {
		s.Undo = append([]string{}, s.Undo...)
	}
	if s.Redo != nil {
		s.Redo = append([]string{}, s.Redo...)
	}
	return s
}

// EditorStatePatch is a partial EditorState update. Nil fields are left as they are.
type EditorStatePatch struct {
	Content        *string
	Cursor         *Cursor
	Scroll         *Scroll
	Selection      *Selection
	ClearSelection bool
}

// Apply returns s with the patch fields applied.
func (p EditorStatePatch) Apply(s EditorState) EditorState {
	if p.Content != nil {
		s.Content = *p.Content
	}
	if p.Cursor != nil {
		s.Cursor = *p.Cursor
	}
	if p.Scroll != nil {
		s.Scroll = *p.Scroll
	}
	if p.ClearSelection {
		s.Selection = nil
	} else if p.Selection != nil {
		sel := *p.Selection
		s.Selection = &sel
	}
	return s
}

// EditorTab is a session view onto one Diagram.
type EditorTab struct {
	ID           TabID
	DiagramID    DiagramID
	DiagramKey   string
	ProjectID    string
	Title        string
	DiagramType  DiagramType
	IsolationKey string
	IsModified   bool
	IsActive     bool
	IsPinned     bool
	EditorState  EditorState
	LastAccessed time.Time
	OpenedSeq    int64
}

// Clone returns a deep copy of t.
func (t EditorTab) Clone() EditorTab {
	t.EditorState = t.EditorState.Clone()
	return t
}

// References reports whether t is bound to the diagram identified by id or
// by localKey. Empty identifiers never match.
func (t EditorTab) References(id DiagramID, localKey string) bool {
	if id != "" && t.DiagramID == id {
		return true
	}
	return localKey != "" && t.DiagramKey == localKey
}
