package remote_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/projectservice"
	"github.com/zjrosen/diagramdesk/internal/remote"
	"github.com/zjrosen/diagramdesk/internal/tracing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestClient(t *testing.T) (*remote.Client, *projectservice.Faults) {
	t.Helper()
	faults := &projectservice.Faults{}
	srv := httptest.NewServer(projectservice.NewRouter(projectservice.NewStore(), nil, faults))
	t.Cleanup(srv.Close)
	return remote.NewClient(remote.ClientConfig{BaseURL: srv.URL, Timeout: 2 * time.Second}), faults
}

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	project, err := client.CreateProject(ctx, "p1", "Payments", "checkout flows")
	require.NoError(t, err)
	require.Equal(t, "p1", project.ID)
	require.Equal(t, "checkout flows", project.Description)

	d, err := client.AddDiagram(ctx, "p1", remote.DiagramInput{Title: "Checkout", Content: "graph TD", Type: domain.DiagramTypeFlowchart})
	require.NoError(t, err)
	require.True(t, d.Saved())
	require.Equal(t, "p1", d.ProjectID)

	d, err = client.UpdateDiagram(ctx, "p1", d.ID, remote.DiagramInput{Title: "Checkout", Content: "graph LR", Type: domain.DiagramTypeFlowchart})
	require.NoError(t, err)
	require.Equal(t, "graph LR", d.Content)

	got, err := client.GetDiagram(ctx, "p1", d.ID)
	require.NoError(t, err)
	require.Equal(t, d.ID, got.ID)

	outline, err := client.GetProjectOutline(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, outline.Diagrams, 1)

	diagrams, err := client.ListDiagrams(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, diagrams, 1)

	projects, err := client.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.Nil(t, projects[0].Diagrams)

	require.NoError(t, client.DeleteDiagram(ctx, "p1", d.ID))
	_, err = client.GetDiagram(ctx, "p1", d.ID)
	require.ErrorIs(t, err, remote.ErrNotFound)
	require.Equal(t, domain.CategoryValidation, domain.CategoryOf(err))
}

func TestClient_EmptyOutlineHasDiagramSlice(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	_, err := client.CreateProject(ctx, "p1", "Empty", "")
	require.NoError(t, err)

	outline, err := client.GetProjectOutline(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, outline.Diagrams)
	require.Empty(t, outline.Diagrams)
}

func TestClient_ValidationFields(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)
	_, err := client.CreateProject(ctx, "p1", "Payments", "")
	require.NoError(t, err)

	_, err = client.AddDiagram(ctx, "p1", remote.DiagramInput{Type: domain.DiagramTypeFlowchart})

	var remoteErr *domain.RemoteError
	require.True(t, errors.As(err, &remoteErr))
	require.Equal(t, remote.OpAddDiagram, remoteErr.Op)
	require.Equal(t, http.StatusBadRequest, remoteErr.StatusCode)
	require.Equal(t, domain.CategoryValidation, remoteErr.Category)
	require.Equal(t, "required", domain.FieldsOf(err)["title"])
	require.False(t, domain.IsRetryable(err))
}

func TestClient_Conflict(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	_, err := client.CreateProject(ctx, "p1", "A", "")
	require.NoError(t, err)
	_, err = client.CreateProject(ctx, "p1", "B", "")
	require.Equal(t, domain.CategoryConflict, domain.CategoryOf(err))
}

func TestClient_ServerFault(t *testing.T) {
	client, faults := newTestClient(t)
	faults.FailNext(1, http.StatusServiceUnavailable)

	_, err := client.ListProjects(context.Background())
	require.Equal(t, domain.CategoryServer, domain.CategoryOf(err))
	require.True(t, domain.IsRetryable(err))
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := remote.NewClient(remote.ClientConfig{BaseURL: url, Timeout: time.Second})
	_, err := client.ListProjects(context.Background())
	require.Equal(t, domain.CategoryNetwork, domain.CategoryOf(err))
	require.True(t, domain.IsRetryable(err))
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := remote.NewClient(remote.ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := client.ListProjects(context.Background())
	require.Equal(t, domain.CategoryTimeout, domain.CategoryOf(err))
}

func TestClient_SendsTraceIDAndToken(t *testing.T) {
	var gotTrace, gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace.Store(r.Header.Get(tracing.HeaderTraceID))
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"projects":[]}`))
	}))
	defer srv.Close()

	client := remote.NewClient(remote.ClientConfig{BaseURL: srv.URL, Token: "s3cret"})
	ctx := tracing.ContextWithTraceID(context.Background(), "abc123")

	projects, err := client.ListProjects(ctx)
	require.NoError(t, err)
	require.Empty(t, projects)
	require.Equal(t, "abc123", gotTrace.Load())
	require.Equal(t, "Bearer s3cret", gotAuth.Load())
}

func TestClient_OKFalseOnSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"backend busy"}`))
	}))
	defer srv.Close()

	client := remote.NewClient(remote.ClientConfig{BaseURL: srv.URL})
	_, err := client.ListProjects(context.Background())

	var remoteErr *domain.RemoteError
	require.True(t, errors.As(err, &remoteErr))
	require.Equal(t, domain.CategoryServer, remoteErr.Category)
	require.Equal(t, "backend busy", remoteErr.Message)
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	client, _ := newTestClient(t)
	client.SetRateLimit(0.001)

	_, err := client.ListProjects(context.Background())
	require.NoError(t, err, "first request uses the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.ListProjects(ctx)
	require.Error(t, err)
}

func TestStatusCategory(t *testing.T) {
	cases := map[int]domain.Category{
		http.StatusBadRequest:          domain.CategoryValidation,
		http.StatusNotFound:            domain.CategoryValidation,
		http.StatusUnprocessableEntity: domain.CategoryValidation,
		http.StatusRequestTimeout:      domain.CategoryTimeout,
		http.StatusGatewayTimeout:      domain.CategoryTimeout,
		http.StatusConflict:            domain.CategoryConflict,
		http.StatusTooManyRequests:     domain.CategoryServer,
		http.StatusInternalServerError: domain.CategoryServer,
		http.StatusBadGateway:          domain.CategoryServer,
	}
	for code, want := range cases {
		require.Equal(t, want, remote.StatusCategory(code), "status %d", code)
	}
}
