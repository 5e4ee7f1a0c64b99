package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Category classifies a failure for propagation and retry decisions.
type Category string

const (
	CategoryNetwork    Category = "network"
	CategoryTimeout    Category = "timeout"
	CategoryServer     Category = "server"
	CategoryValidation Category = "validation"
	CategoryConflict   Category = "conflict"
	CategoryCapacity   Category = "capacity"
	CategoryCorruption Category = "corruption"
	CategoryStructural Category = "structural"
)

// Retryable reports whether failures of this category may be retried automatically.
func (c Category) Retryable() bool {
	return c == CategoryNetwork || c == CategoryTimeout || c == CategoryServer
}

// Sentinel errors.
var (
	ErrProjectNotLoaded = errors.New("no project loaded")
	ErrProjectNotFound  = errors.New("project not found")
	ErrTabNotFound      = errors.New("tab not found")
	ErrDiagramNotFound  = errors.New("diagram not found")
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// CapacityError is returned when a tab cannot be opened because every open
// tab is pinned.
type CapacityError struct {
	MaxTabs int
	Pinned  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("tab limit %d reached and all %d open tabs are pinned", e.MaxTabs, e.Pinned)
}

// SchemaVersionError is returned when a persisted snapshot carries an
// unsupported version tag.
type SchemaVersionError struct {
	Found     int
	Supported int
}

func (e *SchemaVersionError) Error() string {
	return fmt.Sprintf("snapshot schema version %d is not supported (want %d)", e.Found, e.Supported)
}

// CorruptStateError is returned when a persisted snapshot cannot be decoded
// into a valid workspace state.
type CorruptStateError struct {
	Reason string
	Err    error
}

func (e *CorruptStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt workspace snapshot: %s: %v", e.Reason, e.Err)
	}
	return "corrupt workspace snapshot: " + e.Reason
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}

// StructuralError is returned for malformed actions: a missing or unknown
// type, or a payload that fails validation.
type StructuralError struct {
	ActionType string
	Reason     string
}

func (e *StructuralError) Error() string {
	if e.ActionType == "" {
		return "malformed action: " + e.Reason
	}
	return fmt.Sprintf("malformed action %s: %s", e.ActionType, e.Reason)
}

// InvariantError lists the workspace invariants a candidate state violates.
type InvariantError struct {
	Violations []string
}

func (e *InvariantError) Error() string {
	return "workspace invariant violated: " + strings.Join(e.Violations, "; ")
}

// ValidationError reports invalid input with optional per-field detail.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, ", ") + ")"
}

// RemoteError is a failed call against the remote project service.
type RemoteError struct {
	Op         string
	Category   Category
	StatusCode int
	Message    string
	Fields     map[string]string
	Err        error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(string(e.Category))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// CategoryOf classifies err. It returns "" for errors outside the taxonomy.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}

	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Category
	}
	var capErr *CapacityError
	if errors.As(err, &capErr) {
		return CategoryCapacity
	}
	var structErr *StructuralError
	if errors.As(err, &structErr) {
		return CategoryStructural
	}
	var invErr *InvariantError
	if errors.As(err, &invErr) {
		return CategoryStructural
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return CategoryValidation
	}
	var versionErr *SchemaVersionError
	if errors.As(err, &versionErr) {
		return CategoryCorruption
	}
	var corruptErr *CorruptStateError
	if errors.As(err, &corruptErr) {
		return CategoryCorruption
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	return ""
}

// IsRetryable reports whether err may be retried automatically.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRetriesExhausted) {
		return false
	}
	return CategoryOf(err).Retryable()
}

// FieldsOf returns the field-level detail carried by err, if any.
func FieldsOf(err error) map[string]string {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Fields
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Fields
	}
	return nil
}
