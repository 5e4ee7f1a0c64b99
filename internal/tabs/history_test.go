package tabs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

func TestUpdateTabContent_UndoRedo(t *testing.T) {
	s, _ := newTestStore(t, 10)
	tab, err := s.OpenTab(domain.Diagram{ID: "1", Content: "flowchart TD\nA-->B"})
	require.NoError(t, err)

	require.True(t, s.UpdateTabContent(tab.ID, "flowchart TD\nA-->B-->C"))
	require.True(t, s.UpdateTabContent(tab.ID, "flowchart TD\nA-->B-->C-->D"))

	got, _ := s.Tab(tab.ID)
	require.True(t, got.IsModified)
	require.Len(t, got.EditorState.Undo, 2)
	require.Empty(t, got.EditorState.Redo)

	require.True(t, s.Undo(tab.ID))
	got, _ = s.Tab(tab.ID)
	require.Equal(t, "flowchart TD\nA-->B-->C", got.EditorState.Content)

	require.True(t, s.Undo(tab.ID))
	got, _ = s.Tab(tab.ID)
	require.Equal(t, "flowchart TD\nA-->B", got.EditorState.Content)
	require.False(t, s.Undo(tab.ID), "history exhausted")

	require.True(t, s.Redo(tab.ID))
	require.True(t, s.Redo(tab.ID))
	got, _ = s.Tab(tab.ID)
	require.Equal(t, "flowchart TD\nA-->B-->C-->D", got.EditorState.Content)
	require.False(t, s.Redo(tab.ID))
}

func TestUpdateTabContent_NewEditClearsRedo(t *testing.T) {
	s, _ := newTestStore(t, 10)
	tab, _ := s.OpenTab(domain.Diagram{ID: "1", Content: "a"})

	require.True(t, s.UpdateTabContent(tab.ID, "ab"))
	require.True(t, s.Undo(tab.ID))
	require.True(t, s.UpdateTabContent(tab.ID, "ac"))

	got, _ := s.Tab(tab.ID)
	require.Empty(t, got.EditorState.Redo)
	require.False(t, s.Redo(tab.ID))
}

func TestUpdateTabContent_SameContentIsNoop(t *testing.T) {
	s, _ := newTestStore(t, 10)
	tab, _ := s.OpenTab(domain.Diagram{ID: "1", Content: "a"})

	require.True(t, s.UpdateTabContent(tab.ID, "a"))
	got, _ := s.Tab(tab.ID)
	require.False(t, got.IsModified)
	require.Empty(t, got.EditorState.Undo)
}

func TestUpdateTabContent_HistoryIsBounded(t *testing.T) {
	s, _ := newTestStore(t, 10)
	tab, _ := s.OpenTab(domain.Diagram{ID: "1", Content: ""})

	for i := 0; i < domain.MaxHistory+20; i++ {
		require.True(t, s.UpdateTabContent(tab.ID, fmt.Sprintf("v%d", i)))
	}
	got, _ := s.Tab(tab.ID)
	require.Len(t, got.EditorState.Undo, domain.MaxHistory)
}
