package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// FileExporter writes finished spans to a JSONL trace journal. Workspace
// dispatch and remote sync attributes are lifted out of the attribute bag
// into typed fields so the journal can be filtered with jq by action or
// remote operation.
type FileExporter struct {
	mu  sync.Mutex
	out *os.File
	enc *json.Encoder
}

// NewFileExporter opens path for appending, creating it and its parent
// directory when missing.
func NewFileExporter(path string) (*FileExporter, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening trace journal: %w", err)
	}
	return &FileExporter{out: f, enc: json.NewEncoder(f)}, nil
}

// JournalEntry is one line of the trace journal.
type JournalEntry struct {
	Service    string    `json:"service,omitempty"`
	TraceID    string    `json:"trace_id"`
	SpanID     string    `json:"span_id"`
	ParentID   string    `json:"parent_id,omitempty"`
	Name       string    `json:"name"`
	Start      time.Time `json:"start"`
	DurationMs float64   `json:"duration_ms"`
	Failed     bool      `json:"failed,omitempty"`
	Error      string    `json:"error,omitempty"`

	ProjectID string         `json:"project_id,omitempty"`
	DiagramID string         `json:"diagram_id,omitempty"`
	TabID     string         `json:"tab_id,omitempty"`
	Action    *ActionEntry   `json:"action,omitempty"`
	Remote    *RemoteEntry   `json:"remote,omitempty"`
	Fault     *FaultEntry    `json:"fault,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	Events    []string       `json:"events,omitempty"`
}

// ActionEntry describes a workspace dispatch span.
type ActionEntry struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Source string `json:"source,omitempty"`
}

// RemoteEntry describes a remote call. On a sync span, Retries counts the
// retry.scheduled events its attempts produced.
type RemoteEntry struct {
	Op      string `json:"op"`
	Attempt int64  `json:"attempt,omitempty"`
	Retries int    `json:"retries,omitempty"`
}

// FaultEntry carries the classified error of a failed span.
type FaultEntry struct {
	Category  string `json:"category"`
	Retryable bool   `json:"retryable"`
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *FileExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range spans {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.enc.Encode(journalEntry(s)); err != nil {
			return fmt.Errorf("writing trace journal: %w", err)
		}
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *FileExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out.Close()
}

func journalEntry(s sdktrace.ReadOnlySpan) JournalEntry {
	entry := JournalEntry{
		TraceID:    s.SpanContext().TraceID().String(),
		SpanID:     s.SpanContext().SpanID().String(),
		Name:       s.Name(),
		Start:      s.StartTime(),
		DurationMs: float64(s.EndTime().Sub(s.StartTime())) / float64(time.Millisecond),
	}
	if p := s.Parent(); p.IsValid() {
		entry.ParentID = p.SpanID().String()
	}
	if res := s.Resource(); res != nil {
		if v, ok := res.Set().Value("service.name"); ok {
			entry.Service = v.AsString()
		}
	}
	if st := s.Status(); st.Code == codes.Error {
		entry.Failed = true
		entry.Error = st.Description
	}

	for _, kv := range s.Attributes() {
		entry.lift(kv)
	}
	for _, ev := range s.Events() {
		entry.Events = append(entry.Events, ev.Name)
		if ev.Name != EventRetryScheduled {
			continue
		}
		r := entry.remote()
		r.Retries++
		for _, kv := range ev.Attributes {
			if kv.Key == AttrRemoteOp && r.Op == "" {
				r.Op = kv.Value.AsString()
			}
		}
	}
	return entry
}

func (e *JournalEntry) lift(kv attribute.KeyValue) {
	switch string(kv.Key) {
	case AttrProjectID:
		e.ProjectID = kv.Value.AsString()
	case AttrDiagramID:
		e.DiagramID = kv.Value.AsString()
	case AttrTabID:
		e.TabID = kv.Value.AsString()
	case AttrActionType:
		e.action().Type = kv.Value.AsString()
	case AttrActionID:
		e.action().ID = kv.Value.AsString()
	case AttrActionSource:
		e.action().Source = kv.Value.AsString()
	case AttrRemoteOp:
		e.remote().Op = kv.Value.AsString()
	case AttrRemoteAttempt:
		e.remote().Attempt = kv.Value.AsInt64()
	case AttrErrorCategory:
		e.fault().Category = kv.Value.AsString()
	case AttrErrorRetryable:
		e.fault().Retryable = kv.Value.AsBool()
	default:
		if e.Extra == nil {
			e.Extra = make(map[string]any)
		}
		e.Extra[string(kv.Key)] = kv.Value.AsInterface()
	}
}

func (e *JournalEntry) action() *ActionEntry {
	if e.Action == nil {
		e.Action = &ActionEntry{}
	}
	return e.Action
}

func (e *JournalEntry) remote() *RemoteEntry {
	if e.Remote == nil {
		e.Remote = &RemoteEntry{}
	}
	return e.Remote
}

func (e *JournalEntry) fault() *FaultEntry {
	if e.Fault == nil {
		e.Fault = &FaultEntry{}
	}
	return e.Fault
}
