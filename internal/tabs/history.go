package tabs

import (
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

// UpdateTabContent replaces the tab content, pushing a patch that restores
// the previous content onto the undo stack and clearing the redo stack.
// The tab is marked modified when the content changes.
func (s *Store) UpdateTabContent(id domain.TabID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return false
	}
	st := &s.open[i].EditorState
	if st.Content == content {
		return true
	}

	st.Undo = pushHistory(st.Undo, reversePatch(st.Content, content))
	st.Redo = nil
	st.Content = content
	s.open[i].IsModified = true
	return true
}

// Undo restores the content before the most recent edit. It returns false
// for unknown tabs, an empty history or a patch that no longer applies.
func (s *Store) Undo(id domain.TabID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return false
	}
	st := &s.open[i].EditorState
	if len(st.Undo) == 0 {
		return false
	}

	restored, ok := applyPatch(st.Undo[len(st.Undo)-1], st.Content)
	if !ok {
		return false
	}
	st.Undo = st.Undo[:len(st.Undo)-1]
	st.Redo = pushHistory(st.Redo, reversePatch(st.Content, restored))
	st.Content = restored
	s.open[i].IsModified = true
	return true
}

// Redo re-applies the most recently undone edit.
func (s *Store) Redo(id domain.TabID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return false
	}
	st := &s.open[i].EditorState
	if len(st.Redo) == 0 {
		return false
	}

	restored, ok := applyPatch(st.Redo[len(st.Redo)-1], st.Content)
	if !ok {
		return false
	}
	st.Redo = st.Redo[:len(st.Redo)-1]
	st.Undo = pushHistory(st.Undo, reversePatch(st.Content, restored))
	st.Content = restored
	s.open[i].IsModified = true
	return true
}

// reversePatch returns the patch text turning after back into before.
func reversePatch(before, after string) string {
	dmp := diffmatchpatch.New()
	return dmp.PatchToText(dmp.PatchMake(after, before))
}

func applyPatch(text, content string) (string, bool) {
	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(text)
	if err != nil {
		return "", false
	}
	out, applied := dmp.PatchApply(patches, content)
	for _, ok := range applied {
		if !ok {
			return "", false
		}
	}
	return out, true
}

func pushHistory(stack []string, entry string) []string {
	stack = append(stack, entry)
	if len(stack) > domain.MaxHistory {
		stack = append([]string{}, stack[len(stack)-domain.MaxHistory:]...)
	}
	return stack
}
