package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatJSON writes v as indented JSON
func (f *Formatter) FormatJSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatWorkspace writes a human readable summary of a workspace.
func (f *Formatter) FormatWorkspace(ws WorkspaceDTO) error {
	w := tabwriter.NewWriter(f.writer, 0, 4, 2, ' ', 0)
	project := "(none)"
	if ws.Project != nil {
		project = fmt.Sprintf("%s (%s, %d diagrams)", ws.Project.Name, ws.Project.ID, len(ws.Project.Diagrams))
	}
	fmt.Fprintf(w, "Project:\t%s\n", project)
	fmt.Fprintf(w, "Theme:\t%s\n", ws.Theme)
	fmt.Fprintf(w, "Revision:\t%d\n", ws.Revision)
	fmt.Fprintf(w, "Auto save:\t%t every %s\n", ws.Settings.AutoSave, ws.Settings.AutoSaveInterval)
	fmt.Fprintf(w, "Tabs:\t%d/%d\n", len(ws.Tabs), ws.Settings.MaxTabs)
	for _, t := range ws.Tabs {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", tabMarks(t), t.Title, t.ID)
	}
	for _, n := range ws.Notifications {
		fmt.Fprintf(w, "[%s]\t%s\t%s\n", n.Type, n.Title, n.Message)
	}
	return w.Flush()
}

func tabMarks(t TabDTO) string {
	marks := []byte("   ")
	if t.Active {
		marks[0] = '>'
	}
	if t.Pinned {
		marks[1] = 'p'
	}
	if t.Modified {
		marks[2] = '*'
	}
	return string(marks)
}
