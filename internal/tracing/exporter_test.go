package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/diagramdesk/internal/domain"
)

func readJournal(t *testing.T, path string) []JournalEntry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []JournalEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e JournalEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e), "line %q", sc.Text())
		entries = append(entries, e)
	}
	require.NoError(t, sc.Err())
	return entries
}

func journalProvider(t *testing.T, path string) *sdktrace.TracerProvider {
	t.Helper()
	exp, err := NewFileExporter(path)
	require.NoError(t, err)
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", "diagramdesk"))),
	)
}

func dispatchStub(tab string) tracetest.SpanStub {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return tracetest.SpanStub{
		Name: SpanPrefixAction + "tab_opened",
		SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{1},
			SpanID:  trace.SpanID{2},
		}),
		StartTime: start,
		EndTime:   start.Add(1500 * time.Microsecond),
		Attributes: []attribute.KeyValue{
			attribute.String(AttrActionType, "tab_opened"),
			attribute.String(AttrActionID, "a-17"),
			attribute.String(AttrActionSource, "user"),
			attribute.String(AttrTabID, tab),
			attribute.String(AttrDiagramID, "d1"),
		},
		Status:   sdktrace.Status{Code: codes.Ok},
		Resource: resource.NewSchemaless(attribute.String("service.name", "diagramdesk")),
	}
}

func TestFileExporter_WorkspaceDispatchEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)

	require.NoError(t, exp.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{dispatchStub("t1").Snapshot()}))
	require.NoError(t, exp.Shutdown(context.Background()))

	entries := readJournal(t, path)
	require.Len(t, entries, 1)
	e := entries[0]
	require.Equal(t, "workspace.tab_opened", e.Name)
	require.Equal(t, "diagramdesk", e.Service)
	require.Equal(t, &ActionEntry{Type: "tab_opened", ID: "a-17", Source: "user"}, e.Action)
	require.Equal(t, "t1", e.TabID)
	require.Equal(t, "d1", e.DiagramID)
	require.InDelta(t, 1.5, e.DurationMs, 0.001)
	require.Nil(t, e.Remote)
	require.Nil(t, e.Fault)
	require.Empty(t, e.Extra, "known keys are lifted, not duplicated")
	require.False(t, e.Failed)
}

func TestFileExporter_SyncSaveCountsRetries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	tp := journalProvider(t, path)
	tracer := tp.Tracer("test")

	_, err := Run(context.Background(), tracer, SpanPrefixSync+"save_diagram",
		[]attribute.KeyValue{attribute.String(AttrProjectID, "p1"), attribute.String(AttrDiagramID, "d1")},
		func(ctx context.Context) (string, error) {
			for attempt := 1; attempt <= 2; attempt++ {
				trace.SpanFromContext(ctx).AddEvent(EventRetryScheduled, trace.WithAttributes(
					attribute.String(AttrRemoteOp, "update_diagram"),
					attribute.Int(AttrRemoteAttempt, attempt),
				))
			}
			return Run(ctx, tracer, SpanPrefixRemote+"update_diagram",
				[]attribute.KeyValue{
					attribute.String(AttrRemoteOp, "update_diagram"),
					attribute.Int(AttrRemoteAttempt, 3),
				},
				func(context.Context) (string, error) { return "d1", nil })
		})
	require.NoError(t, err)
	require.NoError(t, tp.Shutdown(context.Background()))

	entries := readJournal(t, path)
	require.Len(t, entries, 2)
	call, save := entries[0], entries[1]

	require.Equal(t, "remote.update_diagram", call.Name)
	require.Equal(t, &RemoteEntry{Op: "update_diagram", Attempt: 3}, call.Remote)
	require.Equal(t, save.SpanID, call.ParentID)
	require.Equal(t, save.TraceID, call.TraceID)

	require.Equal(t, "sync.save_diagram", save.Name)
	require.Equal(t, "p1", save.ProjectID)
	require.Equal(t, &RemoteEntry{Op: "update_diagram", Retries: 2}, save.Remote)
	require.Equal(t, []string{EventRetryScheduled, EventRetryScheduled}, save.Events)
	require.Empty(t, save.ParentID)
}

func TestFileExporter_FailedSyncRecordsFault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	tp := journalProvider(t, path)

	remoteErr := &domain.RemoteError{Op: "add_diagram", Category: domain.CategoryServer, StatusCode: 503}
	_, err := Run(context.Background(), tp.Tracer("test"), SpanPrefixSync+"save_diagram", nil,
		func(context.Context) (string, error) { return "", remoteErr })
	require.ErrorIs(t, err, remoteErr)
	require.NoError(t, tp.Shutdown(context.Background()))

	entries := readJournal(t, path)
	require.Len(t, entries, 1)
	e := entries[0]
	require.True(t, e.Failed)
	require.Equal(t, remoteErr.Error(), e.Error)
	require.Equal(t, &FaultEntry{Category: "server", Retryable: true}, e.Fault)
	require.Contains(t, e.Events, "exception")
	require.Nil(t, e.Remote, "no retries were scheduled")
}

func TestFileExporter_UnliftedAttributesGoToExtra(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)

	stub := tracetest.SpanStub{
		Name: SpanPrefixHTTP + "GET /projects/:id",
		Attributes: []attribute.KeyValue{
			attribute.String(AttrHTTPRoute, "/projects/:id"),
			attribute.Int(AttrHTTPStatus, 200),
			attribute.Bool(AttrCacheHit, true),
			attribute.String(AttrProjectID, "p9"),
		},
	}
	require.NoError(t, exp.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()}))
	require.NoError(t, exp.Shutdown(context.Background()))

	e := readJournal(t, path)[0]
	require.Equal(t, "p9", e.ProjectID)
	require.Equal(t, map[string]any{
		AttrHTTPRoute:  "/projects/:id",
		AttrHTTPStatus: float64(200),
		AttrCacheHit:   true,
	}, e.Extra)
	require.Nil(t, e.Action)
}

func TestFileExporter_AppendsAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "traces", "traces.jsonl")

	for _, tab := range []string{"t1", "t2"} {
		exp, err := NewFileExporter(path)
		require.NoError(t, err, "parent directories are created")
		require.NoError(t, exp.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{dispatchStub(tab).Snapshot()}))
		require.NoError(t, exp.Shutdown(context.Background()))
	}

	entries := readJournal(t, path)
	require.Len(t, entries, 2)
	require.Equal(t, "t1", entries[0].TabID)
	require.Equal(t, "t2", entries[1].TabID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileExporter_ConcurrentDispatchSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			spans := []sdktrace.ReadOnlySpan{dispatchStub("a").Snapshot(), dispatchStub("b").Snapshot()}
			require.NoError(t, exp.ExportSpans(context.Background(), spans))
		}()
	}
	wg.Wait()
	require.NoError(t, exp.Shutdown(context.Background()))

	entries := readJournal(t, path)
	require.Len(t, entries, 32)
	for _, e := range entries {
		require.NotNil(t, e.Action)
	}
}

func TestFileExporter_StopsOnCanceledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = exp.ExportSpans(ctx, []sdktrace.ReadOnlySpan{dispatchStub("t1").Snapshot()})
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, exp.Shutdown(context.Background()))

	require.Empty(t, readJournal(t, path))
}
