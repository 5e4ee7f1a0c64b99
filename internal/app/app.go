// Package app wires the workspace engine from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/diagramdesk/internal/config"
	"github.com/zjrosen/diagramdesk/internal/contenthash"
	"github.com/zjrosen/diagramdesk/internal/domain"
	"github.com/zjrosen/diagramdesk/internal/flags"
	"github.com/zjrosen/diagramdesk/internal/infrastructure/redis"
	"github.com/zjrosen/diagramdesk/internal/infrastructure/sqlite"
	"github.com/zjrosen/diagramdesk/internal/log"
	"github.com/zjrosen/diagramdesk/internal/persistence"
	"github.com/zjrosen/diagramdesk/internal/remote"
	"github.com/zjrosen/diagramdesk/internal/remotesync"
	"github.com/zjrosen/diagramdesk/internal/tracing"
	"github.com/zjrosen/diagramdesk/internal/watcher"
	"github.com/zjrosen/diagramdesk/internal/workspace"
)

// App owns one workspace session and everything it depends on.
type App struct {
	cfg       config.Config
	tracing   *tracing.Provider
	gateway   *persistence.Gateway
	persister *persistence.Persister
	remote    *remotesync.Coordinator
	store     *workspace.Store
	session   *workspace.Session
	started   bool
}

type options struct {
	kv       persistence.KVStore
	changes  workspace.ChangeSource
	remote   remote.Gateway
	notifier workspace.NotificationCenter
	tracing  *tracing.Config
}

// Option overrides a dependency New would otherwise build from the config.
type Option func(*options)

// WithKVStore uses kv instead of the configured storage backend.
func WithKVStore(kv persistence.KVStore) Option {
	return func(o *options) {
		o.kv = kv
	}
}

// WithChangeSource uses src to detect external snapshot writes.
func WithChangeSource(src workspace.ChangeSource) Option {
	return func(o *options) {
		o.changes = src
	}
}

// WithRemoteGateway uses g instead of an HTTP client for the project service.
func WithRemoteGateway(g remote.Gateway) Option {
	return func(o *options) {
		o.remote = g
	}
}

// WithNotifier sets where notifications are shown. Defaults to the log.
func WithNotifier(n workspace.NotificationCenter) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithTracingConfig replaces the tracing configuration derived from cfg.
func WithTracingConfig(tc tracing.Config) Option {
	return func(o *options) {
		o.tracing = &tc
	}
}

// New builds an App from cfg. Nothing runs until Start.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	o := options{notifier: workspace.LogNotifier{}}
	for _, opt := range opts {
		opt(&o)
	}

	tc := TracingConfig(cfg.Tracing)
	if o.tracing != nil {
		tc = *o.tracing
	}
	provider, err := tracing.NewProvider(tc)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	kv, changes := o.kv, o.changes
	if kv == nil {
		kv, changes, err = openStorage(ctx, cfg.Storage, flags.New(cfg.Flags))
		if err != nil {
			_ = provider.Shutdown(ctx)
			return nil, err
		}
		if o.changes != nil {
			changes = o.changes
		}
	}

	prefix := cfg.Storage.KeyPrefix
	gateway := persistence.NewGateway(kv,
		persistence.WithStateKey(stateKey(prefix)),
		persistence.WithIndex(contenthash.New(contenthash.WithPrefix(prefix))),
	)
	persister := persistence.NewPersister(gateway, cfg.Workspace.PersistDebounce,
		persistence.WithErrorHandler(func(err error) {
			o.notifier.Notify(workspace.WarningNotification("Workspace not saved", err))
		}))

	gw := o.remote
	if gw == nil {
		gw = remote.NewClient(remote.ClientConfig{
			BaseURL:   cfg.Remote.BaseURL,
			Timeout:   cfg.Remote.Timeout,
			Token:     cfg.Remote.Token,
			RateLimit: cfg.Remote.RateLimit,
		})
	}
	coordinator := remotesync.New(gw, remotesync.Config{
		MaxAttempts: cfg.Remote.Retry.MaxAttempts,
		BaseDelay:   cfg.Remote.Retry.BaseDelay,
		MaxDelay:    cfg.Remote.Retry.MaxDelay,
		CacheTTL:    cfg.Remote.CacheTTL,
		Tracer:      provider.Tracer(),
	})

	store := workspace.NewStore(
		workspace.WithInitialState(InitialState(cfg.Workspace)),
		workspace.WithNotifier(o.notifier),
		workspace.WithScheduler(persister),
		workspace.WithTracer(provider.Tracer()),
	)

	sessionOpts := []workspace.SessionOption{
		workspace.WithPersistence(gateway, persister),
		workspace.WithSessionNotifier(o.notifier),
	}
	if changes != nil {
		sessionOpts = append(sessionOpts, workspace.WithChangeSource(changes))
	}
	session := workspace.NewSession(store, coordinator, workspace.SessionConfig{
		ContentDebounce: cfg.Workspace.ContentDebounce,
		CallTimeout:     cfg.Remote.Timeout * time.Duration(cfg.Remote.Retry.MaxAttempts+1),
	}, sessionOpts...)

	log.Info(log.CatApp, "workspace ready",
		"backend", cfg.Storage.Backend,
		"remote", cfg.Remote.BaseURL,
		"tracing", provider.Enabled())

	return &App{
		cfg:       cfg,
		tracing:   provider,
		gateway:   gateway,
		persister: persister,
		remote:    coordinator,
		store:     store,
		session:   session,
	}, nil
}

// InitialState is the workspace a fresh installation starts with.
func InitialState(ws config.WorkspaceConfig) domain.WorkspaceState {
	s := domain.DefaultState()
	s.Settings.MaxTabs = ws.MaxTabs
	s.Settings.AutoSave = ws.AutoSave
	s.Settings.AutoSaveInterval = ws.AutoSaveInterval
	if t := domain.Theme(ws.Theme); t.Valid() {
		s.Theme = t
	}
	return s
}

func stateKey(prefix string) string {
	if prefix == "" {
		return persistence.DefaultStateKey
	}
	return prefix + ":workspace:state"
}

// TracingConfig maps the tracing section of the config file to a provider config.
func TracingConfig(tc config.TracingConfig) tracing.Config {
	out := tracing.DefaultConfig()
	out.Enabled = tc.Enabled
	if tc.Exporter != "" {
		out.Exporter = tc.Exporter
	}
	out.FilePath = tc.FilePath
	if out.FilePath == "" {
		out.FilePath = config.DefaultTracesFilePath()
	}
	if tc.OTLPEndpoint != "" {
		out.OTLPEndpoint = tc.OTLPEndpoint
	}
	if tc.SampleRate > 0 {
		out.SampleRate = tc.SampleRate
	}
	return out
}

func openStorage(ctx context.Context, sc config.StorageConfig, ff *flags.Registry) (persistence.KVStore, workspace.ChangeSource, error) {
	switch sc.Backend {
	case config.BackendSQLite:
		db, err := sqlite.NewDB(sc.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening workspace database: %w", err)
		}
		var changes workspace.ChangeSource
		if sc.WatchExternal {
			w, err := watcher.New(watcher.DefaultConfig(sc.SQLitePath))
			if err != nil {
				log.Warn(log.CatWatcher, "external change detection unavailable", "error", err)
			} else {
				changes = w
			}
		}
		return db.KVStore(), changes, nil

	case config.BackendRedis:
		feed := ff.Enabled(flags.FlagRedisChangeFeed)
		opts := redis.Options{
			Addr:     sc.RedisAddr,
			DB:       sc.RedisDB,
			Password: sc.RedisPassword,
		}
		if feed {
			opts.Channel = redis.ChangesChannel(sc.KeyPrefix)
		}
		rs, err := redis.New(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		if !feed {
			return rs, nil, nil
		}
		return rs, newRedisChanges(rs, stateKey(sc.KeyPrefix)), nil

	case config.BackendMemory:
		return persistence.NewMemoryStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Session returns the workspace session.
func (a *App) Session() *workspace.Session {
	return a.session
}

// Store returns the workspace store.
func (a *App) Store() *workspace.Store {
	return a.store
}

// Gateway returns the persistence gateway.
func (a *App) Gateway() *persistence.Gateway {
	return a.gateway
}

// Remote returns the remote sync coordinator.
func (a *App) Remote() *remotesync.Coordinator {
	return a.remote
}

// Start restores the persisted workspace and starts the session. Without a
// stored snapshot the configured initial state is kept.
func (a *App) Start(ctx context.Context) error {
	if _, ok, err := a.gateway.Raw(ctx); err != nil {
		return err
	} else if ok {
		if err := a.session.RestoreFromStorage(ctx); err != nil {
			return fmt.Errorf("restoring workspace: %w", err)
		}
	}
	if err := a.session.Start(ctx); err != nil {
		return err
	}
	a.started = true
	return nil
}

// Close stops the session, flushes pending writes and releases storage and
// tracing. It is safe to call without Start.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.started {
		errs = append(errs, a.session.Stop(ctx))
	} else if err := a.persister.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flushing workspace snapshot: %w", err))
	}
	a.store.Close()
	if err := a.gateway.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing storage: %w", err))
	}
	if err := a.tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down tracing: %w", err))
	}
	return errors.Join(errs...)
}
