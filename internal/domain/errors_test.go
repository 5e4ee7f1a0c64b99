package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), ""},
		{"capacity", &CapacityError{MaxTabs: 5, Pinned: 5}, CategoryCapacity},
		{"structural", &StructuralError{Reason: "missing type"}, CategoryStructural},
		{"invariant", &InvariantError{Violations: []string{"x"}}, CategoryStructural},
		{"validation", &ValidationError{Message: "bad"}, CategoryValidation},
		{"schema version", &SchemaVersionError{Found: 2, Supported: 1}, CategoryCorruption},
		{"corrupt", &CorruptStateError{Reason: "bad json"}, CategoryCorruption},
		{"remote", &RemoteError{Op: "list", Category: CategoryServer}, CategoryServer},
		{"wrapped remote", fmt.Errorf("save: %w", &RemoteError{Op: "save", Category: CategoryConflict}), CategoryConflict},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), CategoryTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CategoryOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(&RemoteError{Category: CategoryNetwork}))
	require.True(t, IsRetryable(&RemoteError{Category: CategoryTimeout}))
	require.True(t, IsRetryable(&RemoteError{Category: CategoryServer}))
	require.False(t, IsRetryable(&RemoteError{Category: CategoryValidation}))
	require.False(t, IsRetryable(&RemoteError{Category: CategoryConflict}))
	require.False(t, IsRetryable(&CapacityError{}))

	exhausted := fmt.Errorf("%w: %w", ErrRetriesExhausted, &RemoteError{Category: CategoryNetwork})
	require.False(t, IsRetryable(exhausted), "exhausted retries are not retried again automatically")
	require.Equal(t, CategoryNetwork, CategoryOf(exhausted))
}

func TestFieldsOf(t *testing.T) {
	fields := map[string]string{"title": "required"}
	require.Equal(t, fields, FieldsOf(&RemoteError{Category: CategoryValidation, Fields: fields}))
	require.Equal(t, fields, FieldsOf(fmt.Errorf("wrap: %w", &ValidationError{Message: "bad", Fields: fields})))
	require.Nil(t, FieldsOf(errors.New("plain")))
}

func TestValidationError_SortedFields(t *testing.T) {
	err := &ValidationError{Message: "invalid diagram", Fields: map[string]string{"type": "unknown", "content": "empty"}}
	require.Equal(t, "invalid diagram (content: empty, type: unknown)", err.Error())
}

func TestRemoteError_Message(t *testing.T) {
	err := &RemoteError{Op: "updateDiagram", Category: CategoryServer, StatusCode: 503, Message: "unavailable"}
	require.Equal(t, "updateDiagram: server (status 503): unavailable", err.Error())
}
