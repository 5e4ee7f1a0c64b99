package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/tabs"
)

var savedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func genTime(t *rapid.T, label string) time.Time {
	sec := rapid.Int64Range(0, 4102444800).Draw(t, label+"-sec")
	nsec := rapid.Int64Range(0, 999999999).Draw(t, label+"-nsec")
	return time.Unix(sec, nsec).UTC()
}

func genDiagram(t *rapid.T, label string) domain.Diagram {
	d := domain.Diagram{
		ID:         domain.DiagramID(rapid.StringMatching(`[a-z0-9]{0,6}`).Draw(t, label+"-id")),
		LocalKey:   rapid.StringMatching(`[a-f0-9]{0,8}`).Draw(t, label+"-key"),
		ProjectID:  "p1",
		Title:      rapid.String().Draw(t, label+"-title"),
		Content:    rapid.String().Draw(t, label+"-content"),
		Type:       rapid.SampledFrom([]domain.DiagramType{domain.DiagramTypeFlowchart, domain.DiagramTypeSequence}).Draw(t, label+"-type"),
		IsModified: rapid.Bool().Draw(t, label+"-modified"),
		CreatedAt:  genTime(t, label+"-created"),
		UpdatedAt:  genTime(t, label+"-updated"),
	}
	if rapid.Bool().Draw(t, label+"-hasCursor") {
		d.LastCursor = &domain.Cursor{Line: rapid.IntRange(0, 500).Draw(t, label+"-line")}
	}
	return d
}

// genState builds a reachable state by driving a tab store with random
// operations and filling the remaining sections with random data.
func genState(t *rapid.T) domain.WorkspaceState {
	s := domain.DefaultState()

	n := 0
	clockBase := genTime(t, "clock")
	store := tabs.New(
		tabs.WithMaxTabs(rapid.IntRange(1, 5).Draw(t, "maxTabs")),
		tabs.WithClock(func() time.Time { n++; return clockBase.Add(time.Duration(n) * time.Millisecond) }),
		tabs.WithIDGenerator(func() domain.TabID { return domain.TabID(fmt.Sprintf("tab-%d", n)) }),
	)
	for i, steps := 0, rapid.IntRange(0, 15).Draw(t, "steps"); i < steps; i++ {
		order := store.TabOrder()
		switch rapid.IntRange(0, 4).Draw(t, "op") {
		case 0, 1:
			_, _ = store.OpenTab(genDiagram(t, "open"))
		case 2:
			if len(order) > 0 {
				store.CloseTab(order[rapid.IntRange(0, len(order)-1).Draw(t, "close")])
			}
		case 3:
			if len(order) > 0 {
				id := order[rapid.IntRange(0, len(order)-1).Draw(t, "edit")]
				store.UpdateTabContent(id, rapid.String().Draw(t, "content"))
				if rapid.Bool().Draw(t, "select") {
					store.UpdateTabEditorState(id, domain.EditorStatePatch{Selection: &domain.Selection{End: domain.Cursor{Line: 1}}})
				}
			}
		case 4:
			if len(order) > 0 {
				store.ToggleTabPin(order[rapid.IntRange(0, len(order)-1).Draw(t, "pin")])
			}
		}
	}
	s.EditorPane = store.Pane()
	s.Settings.MaxTabs = store.MaxTabs()
	s.Settings.AutoSaveInterval = time.Duration(rapid.Int64Range(1, 3600).Draw(t, "interval")) * time.Millisecond

	if rapid.Bool().Draw(t, "hasProject") {
		p := domain.Project{
			ID:        "p1",
			Name:      rapid.String().Draw(t, "projectName"),
			CreatedAt: genTime(t, "projectCreated"),
			UpdatedAt: genTime(t, "projectUpdated"),
		}
		if rapid.Bool().Draw(t, "hasDiagrams") {
			p.Diagrams = rapid.SliceOfN(rapid.Custom(func(t *rapid.T) domain.Diagram { return genDiagram(t, "diagram") }), 0, 4).Draw(t, "diagrams")
		}
		s.CurrentProject = &p
		s.ProjectList = []domain.Project{p.Summary()}
		s.RecentProjects = []domain.RecentProject{{ID: p.ID, Name: p.Name, OpenedAt: genTime(t, "opened")}}
	}
	if rapid.Bool().Draw(t, "hasNotification") {
		note := domain.Notification{
			ID:        "n1",
			Type:      domain.NotificationError,
			Category:  domain.CategoryNetwork,
			Title:     rapid.String().Draw(t, "noteTitle"),
			CreatedAt: genTime(t, "noteCreated"),
		}
		if rapid.Bool().Draw(t, "hasFields") {
			note.Fields = map[string]string{"title": rapid.String().Draw(t, "field")}
			note.Actions = []domain.NotificationAction{{ID: domain.ActionRetry, Label: "Retry"}}
		}
		s.Notifications = append(s.Notifications, note)
	}
	s.Theme = rapid.SampledFrom([]domain.Theme{domain.ThemeLight, domain.ThemeDark, domain.ThemeSystem}).Draw(t, "theme")
	s.NavigationPane.SearchQuery = rapid.String().Draw(t, "search")
	s.Revision = rapid.Int64Range(0, 1000).Draw(t, "revision")
	return s
}

func TestSerialize_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		state := genState(t)
		text, err := Serialize(state, savedAt)
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		got, err := Deserialize(text)
		if err != nil {
			t.Fatalf("deserialize: %v", err)
		}
		require.Equal(t, state, got)
	})
}

func TestSerialize_DefaultStateRoundTrip(t *testing.T) {
	text, err := Serialize(domain.DefaultState(), savedAt)
	require.NoError(t, err)

	got, err := Deserialize(text)
	require.NoError(t, err)
	require.Equal(t, domain.DefaultState(), got)
}

func TestSerialize_Shape(t *testing.T) {
	state := domain.DefaultState()
	state.CurrentProject = &domain.Project{
		ID:        "p1",
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 600, time.UTC),
	}
	text, err := Serialize(state, savedAt)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &doc))
	require.EqualValues(t, 1, doc["version"])
	require.Equal(t, "2025-06-01T12:00:00Z", doc["savedAt"])

	st := doc["state"].(map[string]any)
	project := st["currentProject"].(map[string]any)
	require.Equal(t, "2025-01-02T03:04:05.0000006Z", project["createdAt"])
	require.Nil(t, st["editorPane"].(map[string]any)["activeTabId"])
}

func TestDeserialize_SchemaVersionMismatch(t *testing.T) {
	text, err := Serialize(domain.DefaultState(), savedAt)
	require.NoError(t, err)
	text = strings.Replace(text, `"version":1`, `"version":2`, 1)

	_, err = Deserialize(text)
	var versionErr *domain.SchemaVersionError
	require.True(t, errors.As(err, &versionErr), "got %v", err)
	require.Equal(t, 2, versionErr.Found)
	require.Equal(t, SchemaVersion, versionErr.Supported)
}

func TestDeserialize_Corrupt(t *testing.T) {
	valid, err := Serialize(domain.DefaultState(), savedAt)
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
	}{
		{"malformed json", `{"version":1,`},
		{"not an object", `[]`},
		{"missing version", `{"state":{}}`},
		{"missing state", `{"version":1,"savedAt":"2025-06-01T12:00:00Z"}`},
		{"null state", `{"version":1,"state":null}`},
		{"missing editor pane", strings.Replace(valid, `"editorPane"`, `"editorPaneX"`, 1)},
		{"missing settings", strings.Replace(valid, `"settings"`, `"settingsX"`, 1)},
		{"bad interval", strings.Replace(valid, `"autoSaveInterval":"30s"`, `"autoSaveInterval":"soon"`, 1)},
		{"wrong field type", strings.Replace(valid, `"revision":0`, `"revision":"zero"`, 1)},
		{"dangling active tab", strings.Replace(valid, `"activeTabId":null`, `"activeTabId":"ghost"`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize(tt.text)
			var corruptErr *domain.CorruptStateError
			require.True(t, errors.As(err, &corruptErr), "got %v", err)
			require.True(t, IsRecoverable(err))
		})
	}
}

func TestDeserialize_BadDate(t *testing.T) {
	state := domain.DefaultState()
	state.RecentProjects = []domain.RecentProject{{ID: "p1", OpenedAt: savedAt}}
	text, err := Serialize(state, savedAt)
	require.NoError(t, err)
	text = strings.Replace(text, `"openedAt":"2025-06-01T12:00:00Z"`, `"openedAt":"yesterday"`, 1)

	_, err = Deserialize(text)
	var corruptErr *domain.CorruptStateError
	require.True(t, errors.As(err, &corruptErr))
	require.Contains(t, corruptErr.Error(), "recentProjects[0].openedAt")
}

func TestSavedAt(t *testing.T) {
	text, err := Serialize(domain.DefaultState(), savedAt)
	require.NoError(t, err)
	got, err := SavedAt(text)
	require.NoError(t, err)
	require.Equal(t, savedAt, got)
}

func TestSerialize_RefusesInvalidUTF8(t *testing.T) {
	state := domain.DefaultState()
	tab := domain.EditorTab{
		ID:           "t1",
		DiagramID:    "d1",
		Title:        "Flow",
		IsActive:     true,
		EditorState:  domain.EditorState{Content: "graph TD\nA-->B\xff\xfe"},
		IsolationKey: "k1",
	}
	state.EditorPane.OpenTabs = []domain.EditorTab{tab}
	state.EditorPane.TabOrder = []domain.TabID{"t1"}
	state.EditorPane.ActiveTabID = "t1"

	_, err := Serialize(state, savedAt)
	var invErr *domain.InvariantError
	require.True(t, errors.As(err, &invErr), "got %v", err)
	require.Equal(t, []string{"tab t1 content is not valid UTF-8"}, invErr.Violations)

	state.EditorPane.OpenTabs[0].EditorState.Content = "graph TD\nA-->B é ✓ 图"
	text, err := Serialize(state, savedAt)
	require.NoError(t, err)
	got, err := Deserialize(text)
	require.NoError(t, err)
	require.Equal(t, state, got)
}
