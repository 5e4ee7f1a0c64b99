package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

func TestBuilder_WithDiagram(t *testing.T) {
	p := NewBuilder("p1").WithDiagram("d1").Project()

	require.Len(t, p.Diagrams, 1)
	d := p.Diagrams[0]
	require.Equal(t, domain.DiagramID("d1"), d.ID)
	require.Equal(t, "p1", d.ProjectID)
	require.Equal(t, "d1", d.Title) // default title is the id
	require.Equal(t, domain.DiagramTypeFlowchart, d.Type)
	require.False(t, d.IsModified)
}

func TestBuilder_WithDiagram_AllOptions(t *testing.T) {
	d := NewBuilder("p1").
		WithDiagram("d1",
			Title("Checkout"),
			Content("sequenceDiagram\nA->>B: pay"),
			Type(domain.DiagramTypeSequence),
			Modified(true),
			CreatedAt(Epoch.Add(-1)),
			UpdatedAt(Epoch.Add(1)),
			LastCursor(3, 7),
		).
		Diagram("d1")

	require.Equal(t, "Checkout", d.Title)
	require.Equal(t, domain.DiagramTypeSequence, d.Type)
	require.True(t, d.IsModified)
	require.Equal(t, Epoch.Add(-1), d.CreatedAt)
	require.Equal(t, Epoch.Add(1), d.UpdatedAt)
	require.Equal(t, &domain.Cursor{Line: 3, Column: 7}, d.LastCursor)
}

func TestBuilder_Unsaved(t *testing.T) {
	d := NewBuilder("p1").WithDiagram("d1", Unsaved("local-1")).Diagram("local-1")

	require.False(t, d.Saved())
	require.Equal(t, "local-1", d.LocalKey)
	require.True(t, d.IsModified)
}

func TestBuilder_State(t *testing.T) {
	s := NewBuilder("p1").
		Named("Payments", "checkout flows").
		WithOtherProject("p2", "Search").
		WithMaxTabs(3).
		WithAutoSave(false).
		WithTheme(domain.ThemeDark).
		WithStandardDiagrams().
		State()

	require.NotNil(t, s.CurrentProject)
	require.Equal(t, "Payments", s.CurrentProject.Name)
	require.Len(t, s.CurrentProject.Diagrams, 4)
	require.Len(t, s.ProjectList, 2)
	require.Nil(t, s.ProjectList[0].Diagrams, "project list holds summaries")
	require.Equal(t, 3, s.Settings.MaxTabs)
	require.False(t, s.Settings.AutoSave)
	require.Equal(t, domain.ThemeDark, s.Theme)
	require.NoError(t, domain.CheckInvariants(s))
}

func TestBuilder_ProjectIsACopy(t *testing.T) {
	b := NewBuilder("p1").WithDiagram("d1")
	p := b.Project()
	p.Diagrams[0].Title = "changed"

	require.Equal(t, "d1", b.Diagram("d1").Title)
}
