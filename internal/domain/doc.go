// Package domain holds the value types of the diagram workspace.
//
// The package contains only pure Go code with standard library imports. It
// defines the entities the workspace is built from and the invariants that
// must hold after every state transition:
//
//   - Diagram and Project describe the editable content owned by the remote
//     project service.
//   - EditorTab and EditorState describe an open editing session onto one
//     diagram.
//   - WorkspaceState is the aggregate root the reducer transforms.
//
// # Ownership
//
// WorkspaceState values are plain data. Clone returns a deep copy so that a
// store can hand snapshots to readers without sharing slices or pointers
// with its own copy.
//
// # Errors
//
// errors.go defines the error taxonomy shared by every layer. CategoryOf
// classifies any error into a Category and IsRetryable reports whether the
// remote synchronisation layer may retry it.
package domain
