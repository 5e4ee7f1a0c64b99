package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func stateWithTabs(active TabID, tabs ...EditorTab) WorkspaceState {
	s := DefaultState()
	for _, t := range tabs {
		t.IsActive = t.ID == active
		s.EditorPane.OpenTabs = append(s.EditorPane.OpenTabs, t)
		s.EditorPane.TabOrder = append(s.EditorPane.TabOrder, t.ID)
	}
	s.EditorPane.ActiveTabID = active
	return s
}

func violations(t *testing.T, err error) []string {
	t.Helper()
	var invErr *InvariantError
	require.True(t, errors.As(err, &invErr), "expected InvariantError, got %v", err)
	return invErr.Violations
}

func TestCheckInvariants_DefaultStateIsValid(t *testing.T) {
	require.NoError(t, CheckInvariants(DefaultState()))
}

func TestCheckInvariants_ValidTabs(t *testing.T) {
	s := stateWithTabs("t2",
		EditorTab{ID: "t1", DiagramID: "d1"},
		EditorTab{ID: "t2", DiagramID: "d2"},
	)
	require.NoError(t, CheckInvariants(s))
}

func TestCheckInvariants_ActiveWithoutTabs(t *testing.T) {
	s := DefaultState()
	s.EditorPane.ActiveTabID = "ghost"
	require.Len(t, violations(t, CheckInvariants(s)), 1)
}

func TestCheckInvariants_NoActiveWithTabs(t *testing.T) {
	s := stateWithTabs("", EditorTab{ID: "t1"})
	require.NotEmpty(t, violations(t, CheckInvariants(s)))
}

func TestCheckInvariants_DuplicateDiagram(t *testing.T) {
	s := stateWithTabs("t1",
		EditorTab{ID: "t1", DiagramID: "d1"},
		EditorTab{ID: "t2", DiagramID: "d1"},
	)
	require.Contains(t, violations(t, CheckInvariants(s)), "diagram d1 open in tabs t1 and t2")
}

func TestCheckInvariants_TabOrderNotPermutation(t *testing.T) {
	s := stateWithTabs("t1", EditorTab{ID: "t1"}, EditorTab{ID: "t2"})
	s.EditorPane.TabOrder = []TabID{"t1", "t1"}
	v := violations(t, CheckInvariants(s))
	require.Contains(t, v, "tab t1 repeated in tab order")
}

func TestCheckInvariants_TwoActiveFlags(t *testing.T) {
	s := stateWithTabs("t1", EditorTab{ID: "t1"}, EditorTab{ID: "t2"})
	s.EditorPane.OpenTabs[1].IsActive = true
	require.NotEmpty(t, violations(t, CheckInvariants(s)))
}

func TestCheckInvariants_ExceedsMaxTabs(t *testing.T) {
	s := stateWithTabs("t1", EditorTab{ID: "t1"}, EditorTab{ID: "t2"})
	s.Settings.MaxTabs = 1
	require.Contains(t, violations(t, CheckInvariants(s)), "2 open tabs exceed limit 1")
}

func TestWorkspaceState_CloneIsDeep(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s := stateWithTabs("t1", EditorTab{
		ID:          "t1",
		EditorState: EditorState{Content: "a", Undo: []string{"p1"}, Selection: &Selection{}},
	})
	s.CurrentProject = &Project{ID: "p", Diagrams: []Diagram{{ID: "d1", LastCursor: &Cursor{Line: 1}}}}
	s.Notifications = []Notification{{ID: "n", Fields: map[string]string{"a": "b"}, CreatedAt: now}}

	c := s.Clone()
	c.EditorPane.OpenTabs[0].EditorState.Undo[0] = "changed"
	c.EditorPane.OpenTabs[0].EditorState.Selection.Start.Line = 9
	c.CurrentProject.Diagrams[0].LastCursor.Line = 7
	c.Notifications[0].Fields["a"] = "z"
	c.EditorPane.TabOrder[0] = "x"

	require.Equal(t, "p1", s.EditorPane.OpenTabs[0].EditorState.Undo[0])
	require.Equal(t, 0, s.EditorPane.OpenTabs[0].EditorState.Selection.Start.Line)
	require.Equal(t, 1, s.CurrentProject.Diagrams[0].LastCursor.Line)
	require.Equal(t, "b", s.Notifications[0].Fields["a"])
	require.Equal(t, TabID("t1"), s.EditorPane.TabOrder[0])
}

func TestEditorTab_References(t *testing.T) {
	tab := EditorTab{ID: "t", DiagramID: "d1", DiagramKey: "k1"}
	require.True(t, tab.References("d1", ""))
	require.True(t, tab.References("", "k1"))
	require.False(t, tab.References("", ""))
	require.False(t, tab.References("d2", "k2"))
}

func TestEditorStatePatch_Apply(t *testing.T) {
	content := "graph TD"
	s := EditorState{Selection: &Selection{End: Cursor{Line: 2}}}
	s = EditorStatePatch{Content: &content, Cursor: &Cursor{Line: 3}}.Apply(s)
	require.Equal(t, "graph TD", s.Content)
	require.Equal(t, Cursor{Line: 3}, s.Cursor)
	require.NotNil(t, s.Selection)

	s = EditorStatePatch{ClearSelection: true}.Apply(s)
	require.Nil(t, s.Selection)
}

func TestCheckInvariants_InvalidUTF8(t *testing.T) {
	s := stateWithTabs("t1", EditorTab{ID: "t1", DiagramID: "d1", Title: "bad\xc3"})
	s.CurrentProject = &Project{
		ID:       "p1",
		Name:     "Payments",
		Diagrams: []Diagram{{LocalKey: "lk", Content: "\xff"}},
	}

	got := violations(t, CheckInvariants(s))
	require.ElementsMatch(t, []string{
		"tab t1 title is not valid UTF-8",
		"diagram lk content is not valid UTF-8",
	}, got)

	require.NoError(t, CheckText(DefaultState()))
	require.True(t, ValidText("graph TD é"))
	require.False(t, ValidText("\xfe"))
}
