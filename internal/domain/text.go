package domain

import (
	"fmt"
	"unicode/utf8"
)

// ValidText reports whether s survives a snapshot round-trip. Snapshots are
// JSON, which replaces bytes that are not UTF-8.
func ValidText(s string) bool {
	return utf8.ValidString(s)
}

// CheckText returns an *InvariantError naming every project, diagram and
// tab field of s that holds text that is not valid UTF-8.
func CheckText(s WorkspaceState) error {
	if v := textViolations(s); len(v) > 0 {
		return &InvariantError{Violations: v}
	}
	return nil
}

func textViolations(s WorkspaceState) []string {
	var out []string
	check := func(where, text string) {
		if !ValidText(text) {
			out = append(out, where+" is not valid UTF-8")
		}
	}
	project := func(p Project) {
		check(fmt.Sprintf("project %s name", p.ID), p.Name)
		check(fmt.Sprintf("project %s description", p.ID), p.Description)
		for _, d := range p.Diagrams {
			ref := string(d.ID)
			if ref == "" {
				ref = d.LocalKey
			}
			check(fmt.Sprintf("diagram %s title", ref), d.Title)
			check(fmt.Sprintf("diagram %s content", ref), d.Content)
		}
	}

	if s.CurrentProject != nil {
		project(*s.CurrentProject)
	}
	for _, p := range s.ProjectList {
		project(p)
	}
	for _, t := range s.EditorPane.OpenTabs {
		check(fmt.Sprintf("tab %s title", t.ID), t.Title)
		check(fmt.Sprintf("tab %s content", t.ID), t.EditorState.Content)
	}
	return out
}
