package presentation

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)

	require.NoError(t, f.FormatJSON(HashDTO{IsolationKey: "abc", AutosaveKey: "a", ManualKey: "m"}))

	var got map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, "abc", got["isolation_key"])
	require.Contains(t, buf.String(), "\n  \"")
}

func TestFormatWorkspace(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(&buf)

	ws := WorkspaceDTO{
		Revision: 7,
		Theme:    "dark",
		Project:  &ProjectDTO{ID: "p1", Name: "Payments", Diagrams: []DiagramDTO{{Title: "Checkout"}}},
		Tabs: []TabDTO{
			{ID: "t1", Title: "Checkout", Active: true, Modified: true},
			{ID: "t2", Title: "Refunds", Pinned: true},
		},
		Settings:      SettingsDTO{AutoSave: true, AutoSaveInterval: "30s", MaxTabs: 10},
		Notifications: []NotificationDTO{{Type: "error", Title: "Save failed", Message: "timeout"}},
	}
	require.NoError(t, f.FormatWorkspace(ws))

	out := buf.String()
	require.Contains(t, out, "Payments (p1, 1 diagrams)")
	require.Contains(t, out, "Tabs:")
	require.Contains(t, out, "2/10")

	lines := strings.Split(out, "\n")
	var tabLines []string
	for _, l := range lines {
		if strings.HasPrefix(l, "  ") {
			tabLines = append(tabLines, l)
		}
	}
	require.Len(t, tabLines, 2)
	require.True(t, strings.HasPrefix(tabLines[0], "  > *"))
	require.True(t, strings.HasPrefix(tabLines[1], "   p "))
	require.Contains(t, out, "[error]")
}

func TestFormatWorkspace_NoProject(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf).FormatWorkspace(WorkspaceDTO{Theme: "system"}))
	require.Contains(t, buf.String(), "(none)")
}
