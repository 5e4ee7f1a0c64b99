// Package persistence stores workspace snapshots and content drafts in a
// local key/value store.
//
// A snapshot is a versioned JSON document:
//
//	{"version":1,"savedAt":"2025-06-01T12:00:00Z","state":{...}}
//
// Dates are RFC 3339 strings in UTC with nanosecond precision. Snapshots
// with any other version are rejected with *domain.SchemaVersionError;
// malformed documents are rejected with *domain.CorruptStateError.
package persistence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

// SchemaVersion is the only snapshot version this build reads and writes.
const SchemaVersion = 1

// Serialize encodes state as a versioned snapshot stamped with savedAt.
// Text that is not valid UTF-8 is refused rather than altered.
func Serialize(state domain.WorkspaceState, savedAt time.Time) (string, error) {
	if err := domain.CheckText(state); err != nil {
		return "", fmt.Errorf("encoding workspace snapshot: %w", err)
	}
	env := envelopeModel{
		Version: SchemaVersion,
		SavedAt: formatTime(savedAt),
		State:   toStateModel(state),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encoding workspace snapshot: %w", err)
	}
	return string(data), nil
}

// rawEnvelope defers decoding of the state so the version can be checked first.
type rawEnvelope struct {
	Version *int            `json:"version"`
	SavedAt string          `json:"savedAt"`
	State   json.RawMessage `json:"state"`
}

// Deserialize decodes a snapshot produced by Serialize. The decoded state
// must satisfy the workspace invariants.
func Deserialize(text string) (domain.WorkspaceState, error) {
	var env rawEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return domain.WorkspaceState{}, &domain.CorruptStateError{Reason: "malformed JSON", Err: err}
	}
	if env.Version == nil {
		return domain.WorkspaceState{}, &domain.CorruptStateError{Reason: "missing version"}
	}
	if *env.Version != SchemaVersion {
		return domain.WorkspaceState{}, &domain.SchemaVersionError{Found: *env.Version, Supported: SchemaVersion}
	}
	if len(env.State) == 0 || bytes.Equal(bytes.TrimSpace(env.State), []byte("null")) {
		return domain.WorkspaceState{}, &domain.CorruptStateError{Reason: "missing state"}
	}

	var m stateModel
	if err := json.Unmarshal(env.State, &m); err != nil {
		return domain.WorkspaceState{}, &domain.CorruptStateError{Reason: "malformed state", Err: err}
	}
	if err := m.checkShape(); err != nil {
		return domain.WorkspaceState{}, err
	}

	state, err := m.toDomain()
	if err != nil {
		return domain.WorkspaceState{}, err
	}
	if err := domain.CheckInvariants(state); err != nil {
		return domain.WorkspaceState{}, &domain.CorruptStateError{Reason: "snapshot violates workspace invariants", Err: err}
	}
	return state, nil
}

// SavedAt extracts the savedAt stamp of a snapshot without decoding its state.
func SavedAt(text string) (time.Time, error) {
	var env rawEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return time.Time{}, &domain.CorruptStateError{Reason: "malformed JSON", Err: err}
	}
	return parseTime("savedAt", env.SavedAt)
}

func (m *stateModel) checkShape() error {
	var missing []string
	if m.NavigationPane == nil {
		missing = append(missing, "navigationPane")
	}
	if m.EditorPane == nil {
		missing = append(missing, "editorPane")
	}
	if m.Settings == nil {
		missing = append(missing, "settings")
	}
	if len(missing) > 0 {
		return &domain.CorruptStateError{Reason: fmt.Sprintf("missing required fields %v", missing)}
	}
	return nil
}

// IsRecoverable reports whether err from Deserialize means the snapshot
// should be discarded in favour of defaults.
func IsRecoverable(err error) bool {
	var versionErr *domain.SchemaVersionError
	var corruptErr *domain.CorruptStateError
	return errors.As(err, &versionErr) || errors.As(err, &corruptErr)
}
