package presentation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

func TestFromDomainWorkspace_TabsFollowTabOrder(t *testing.T) {
	s := domain.DefaultState()
	s.EditorPane.OpenTabs = []domain.EditorTab{
		{ID: "t1", Title: "first", IsolationKey: "k1"},
		{ID: "t2", Title: "second", IsolationKey: "k2", IsActive: true, IsPinned: true},
		{ID: "t3", Title: "third", IsolationKey: "k3", IsModified: true},
	}
	s.EditorPane.TabOrder = []domain.TabID{"t3", "t1", "t2"}
	s.EditorPane.ActiveTabID = "t2"

	dto := FromDomainWorkspace(s)

	require.Len(t, dto.Tabs, 3)
	require.Equal(t, []string{"t3", "t1", "t2"}, []string{dto.Tabs[0].ID, dto.Tabs[1].ID, dto.Tabs[2].ID})
	require.Equal(t, "t2", dto.ActiveTab)
	require.True(t, dto.Tabs[2].Active)
	require.True(t, dto.Tabs[2].Pinned)
	require.True(t, dto.Tabs[0].Modified)
	require.Equal(t, "system", dto.Theme)
	require.Equal(t, "30s", dto.Settings.AutoSaveInterval)
	require.Nil(t, dto.Project)
}

func TestFromDomainWorkspace_Project(t *testing.T) {
	s := domain.DefaultState()
	s.CurrentProject = &domain.Project{
		ID:   "p1",
		Name: "Payments",
		Diagrams: []domain.Diagram{
			{ID: "d1", Title: "Checkout", Type: domain.DiagramTypeFlowchart, Content: "graph TD"},
			{LocalKey: "local-1", Title: "Draft", Type: domain.DiagramTypeSequence, IsModified: true},
		},
	}
	opened := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s.RecentProjects = []domain.RecentProject{{ID: "p1", Name: "Payments", OpenedAt: opened}}

	dto := FromDomainWorkspace(s)

	require.NotNil(t, dto.Project)
	require.Equal(t, "Payments", dto.Project.Name)
	require.Equal(t, []DiagramDTO{
		{ID: "d1", Title: "Checkout", Type: "flowchart"},
		{LocalKey: "local-1", Title: "Draft", Type: "sequence", Modified: true},
	}, dto.Project.Diagrams)
	require.Equal(t, []RecentDTO{{ID: "p1", Name: "Payments", OpenedAt: opened}}, dto.Recent)
}

func TestFromDomainNotification_Retry(t *testing.T) {
	n := domain.Notification{
		ID:       "n1",
		Type:     domain.NotificationError,
		Category: domain.CategoryNetwork,
		Title:    "Save failed",
		Actions:  []domain.NotificationAction{{ID: "dismiss"}, {ID: domain.ActionRetry, Label: "Retry"}},
	}

	dto := FromDomainNotification(n)
	require.True(t, dto.Retry)
	require.Equal(t, "error", dto.Type)
	require.Equal(t, "network", dto.Category)

	n.Actions = nil
	require.False(t, FromDomainNotification(n).Retry)
}
