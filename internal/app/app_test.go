package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/diagramdesk/internal/config"
	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/flags"
	"github.com/zjrosen/diagramdesk/internal/infrastructure/redis"
	"github.com/zjrosen/diagramdesk/internal/projectservice"
	"github.com/zjrosen/diagramdesk/internal/workspace"
)

// testConfig returns a config that needs no home directory, network or disk.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage.Backend = config.BackendMemory
	cfg.Workspace.PersistDebounce = 5 * time.Millisecond
	cfg.Workspace.ContentDebounce = 5 * time.Millisecond
	cfg.Remote.Retry.BaseDelay = time.Millisecond
	cfg.Remote.Retry.MaxDelay = 5 * time.Millisecond
	cfg.Tracing.Enabled = false
	return cfg
}

func newProjectService(t *testing.T) (*projectservice.Store, string) {
	t.Helper()
	store := projectservice.NewStore()
	srv := httptest.NewServer(projectservice.NewRouter(store, nil, nil))
	t.Cleanup(srv.Close)
	return store, srv.URL
}

func newApp(t *testing.T, cfg config.Config, opts ...Option) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	return a
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workspace.MaxTabs = 0

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "max_tabs")
}

func TestInitialState(t *testing.T) {
	ws := config.Defaults().Workspace
	ws.MaxTabs = 3
	ws.AutoSave = false
	ws.Theme = "dark"

	s := InitialState(ws)

	require.Equal(t, 3, s.Settings.MaxTabs)
	require.False(t, s.Settings.AutoSave)
	require.Equal(t, domain.ThemeDark, s.Theme)
	require.NoError(t, domain.CheckInvariants(s))
}

func TestApp_EditAndSaveAgainstProjectService(t *testing.T) {
	ctx := context.Background()
	service, url := newProjectService(t)
	p, err := service.CreateProject("p1", "Architecture", "")
	require.NoError(t, err)
	d, err := service.AddDiagram(p.ID, "Login", "sequenceDiagram\nA->>B: hi", domain.DiagramTypeSequence)
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.Remote.BaseURL = url
	a := newApp(t, cfg)
	require.NoError(t, a.Start(ctx))

	s := a.Session()
	require.NoError(t, s.LoadProjects(ctx))
	require.NoError(t, s.OpenProject(ctx, p.ID))
	tabID, err := s.OpenDiagram(ctx, d.ID)
	require.NoError(t, err)
	require.NoError(t, s.UpdateContent(tabID, "sequenceDiagram\nA->>B: hello"))
	require.NoError(t, s.SaveTab(ctx, tabID))

	stored, err := service.Diagram(p.ID, d.ID)
	require.NoError(t, err)
	require.Equal(t, "sequenceDiagram\nA->>B: hello", stored.Content)

	newTab, err := s.CreateDiagram("Deploy", domain.DiagramTypeFlowchart, "flowchart TD\nci-->prod")
	require.NoError(t, err)
	require.NoError(t, s.SaveCurrentProject(ctx))

	state := a.Store().State()
	tab, ok := findTab(state, newTab)
	require.True(t, ok)
	require.NotEmpty(t, tab.DiagramID, "first save assigned a server id")
	require.False(t, tab.IsModified)

	outline, err := service.Project(p.ID)
	require.NoError(t, err)
	require.Len(t, outline.Diagrams, 2)

	require.NoError(t, a.Close(ctx))
}

func TestApp_RemoteFailureIsNotifiedWithRetry(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Remote.BaseURL = "http://127.0.0.1:1"
	cfg.Remote.Timeout = 200 * time.Millisecond
	cfg.Remote.Retry.MaxAttempts = 2

	var notes []domain.Notification
	a := newApp(t, cfg, WithNotifier(workspace.NotifierFunc(func(n domain.Notification) {
		notes = append(notes, n)
	})))
	t.Cleanup(func() { _ = a.Close(ctx) })

	require.Error(t, a.Session().LoadProjects(ctx))

	require.NotEmpty(t, notes)
	last := notes[len(notes)-1]
	require.Equal(t, domain.NotificationError, last.Type)
	require.True(t, last.HasAction(domain.ActionRetry))
	require.Len(t, a.Store().State().Notifications, 1)
}

func TestApp_SQLiteRestoresAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "workspace.db")

	first := newApp(t, cfg)
	require.NoError(t, first.Start(ctx))
	require.NoError(t, first.Store().Dispatch(workspace.NewThemeChanged(domain.ThemeDark)).Err)
	require.NoError(t, first.Store().Dispatch(workspace.NewNavigationResized(320)).Err)
	require.NoError(t, first.Close(ctx))

	second := newApp(t, cfg)
	require.NoError(t, second.Start(ctx))
	t.Cleanup(func() { _ = second.Close(ctx) })

	state := second.Store().State()
	require.Equal(t, domain.ThemeDark, state.Theme)
	require.Equal(t, 320, state.NavigationPane.Width)
}

func TestApp_FreshStorageKeepsConfiguredSettings(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Workspace.MaxTabs = 4

	a := newApp(t, cfg)
	require.NoError(t, a.Start(ctx))
	t.Cleanup(func() { _ = a.Close(ctx) })

	require.Equal(t, 4, a.Store().State().Settings.MaxTabs)
}

func TestApp_RedisReloadsExternalWrites(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendRedis
	cfg.Storage.RedisAddr = mr.Addr()
	cfg.Flags = map[string]bool{flags.FlagRedisChangeFeed: true}

	watching := newApp(t, cfg)
	require.NoError(t, watching.Start(ctx))
	t.Cleanup(func() { _ = watching.Close(ctx) })

	writer := newApp(t, cfg)
	require.NoError(t, writer.Store().Dispatch(workspace.NewThemeChanged(domain.ThemeLight)).Err)
	require.NoError(t, writer.Close(ctx))

	// The subscription may start after the write was announced, so keep
	// announcing until the reload is observed.
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	channel := redis.ChangesChannel(cfg.Storage.KeyPrefix)
	require.Eventually(t, func() bool {
		client.Publish(ctx, channel, stateKey(cfg.Storage.KeyPrefix))
		return watching.Store().State().Theme == domain.ThemeLight
	}, 2*time.Second, 20*time.Millisecond)
}

func TestOpenStorage_RedisChangeFeedIsFlagged(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	sc := testConfig(t).Storage
	sc.Backend = config.BackendRedis
	sc.RedisAddr = mr.Addr()

	kv, changes, err := openStorage(ctx, sc, flags.New(nil))
	require.NoError(t, err)
	require.Nil(t, changes)
	require.NoError(t, kv.Close())

	kv, changes, err = openStorage(ctx, sc, flags.New(map[string]bool{flags.FlagRedisChangeFeed: true}))
	require.NoError(t, err)
	require.NotNil(t, changes)
	require.NoError(t, kv.Close())
}

func TestApp_CloseWithoutStartFlushes(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendRedis
	cfg.Storage.RedisAddr = mr.Addr()

	a := newApp(t, cfg)
	require.NoError(t, a.Store().Dispatch(workspace.NewThemeChanged(domain.ThemeDark)).Err)
	require.NoError(t, a.Close(ctx))

	require.True(t, mr.Exists(stateKey(cfg.Storage.KeyPrefix)))
}

func findTab(state domain.WorkspaceState, id domain.TabID) (domain.EditorTab, bool) {
	for _, t := range state.EditorPane.OpenTabs {
		if t.ID == id {
			return t, true
		}
	}
	return domain.EditorTab{}, false
}
