// Package config provides configuration types and defaults for diagramdesk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/diagramdesk/internal/log"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all configuration options for diagramdesk.
type Config struct {
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Server    ServerConfig    `mapstructure:"server"`
	// Flags enables features under controlled rollout. Unknown flags are off.
	Flags map[string]bool `mapstructure:"flags"`
}

// WorkspaceConfig seeds the workspace settings of a fresh state.
type WorkspaceConfig struct {
	MaxTabs          int           `mapstructure:"max_tabs"`
	AutoSave         bool          `mapstructure:"auto_save"`
	AutoSaveInterval time.Duration `mapstructure:"auto_save_interval"`
	// ContentDebounce delays draft writes after an edit.
	ContentDebounce time.Duration `mapstructure:"content_debounce"`
	// PersistDebounce coalesces snapshot writes.
	PersistDebounce time.Duration `mapstructure:"persist_debounce"`
	Theme           string        `mapstructure:"theme"` // "light", "dark" or "system" (default)
}

// StorageConfig selects and configures the snapshot key/value backend.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"` // "sqlite" (default), "redis" or "memory"
	SQLitePath    string `mapstructure:"sqlite_path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPassword string `mapstructure:"redis_password"`
	KeyPrefix     string `mapstructure:"key_prefix"`
	// WatchExternal reloads the workspace when another process writes the
	// sqlite database. Ignored for other backends.
	WatchExternal bool `mapstructure:"watch_external"`
}

// RemoteConfig points at the project service.
type RemoteConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Token    string        `mapstructure:"token"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64     `mapstructure:"rate_limit"`
	Retry     RetryConfig `mapstructure:"retry"`
}

// RetryConfig controls retries of transient remote failures.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/diagramdesk/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// ServerConfig configures `diagramdesk projectd`.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/diagramdesk/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "diagramdesk", "traces", "traces.jsonl")
}

// DefaultSQLitePath returns ~/.diagramdesk/workspace.db, or a relative path if
// the home directory is unavailable.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".diagramdesk", "workspace.db")
	}
	return filepath.Join(home, ".diagramdesk", "workspace.db")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Workspace: WorkspaceConfig{
			MaxTabs:          10,
			AutoSave:         true,
			AutoSaveInterval: 30 * time.Second,
			ContentDebounce:  time.Second,
			PersistDebounce:  250 * time.Millisecond,
			Theme:            "system",
		},
		Storage: StorageConfig{
			Backend:    BackendSQLite,
			SQLitePath: DefaultSQLitePath(),
			RedisAddr:  "localhost:6379",
			KeyPrefix:  "diagramdesk",
		},
		Remote: RemoteConfig{
			BaseURL:  "http://localhost:8420",
			Timeout:  10 * time.Second,
			CacheTTL: time.Minute,
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   time.Second,
				MaxDelay:    10 * time.Second,
			},
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Server: ServerConfig{
			Addr: ":8420",
		},
	}
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if err := ValidateWorkspace(c.Workspace); err != nil {
		return err
	}
	if err := ValidateStorage(c.Storage); err != nil {
		return err
	}
	if err := ValidateRemote(c.Remote); err != nil {
		return err
	}
	return ValidateTracing(c.Tracing)
}

// ValidateWorkspace checks workspace configuration for errors.
func ValidateWorkspace(ws WorkspaceConfig) error {
	if ws.MaxTabs < 1 {
		return fmt.Errorf("workspace.max_tabs must be at least 1, got %d", ws.MaxTabs)
	}
	if ws.AutoSave && ws.AutoSaveInterval < time.Second {
		return fmt.Errorf("workspace.auto_save_interval must be at least 1s when auto_save is enabled, got %s", ws.AutoSaveInterval)
	}
	if ws.ContentDebounce < 0 || ws.PersistDebounce < 0 {
		return fmt.Errorf("workspace debounce durations must not be negative")
	}
	switch ws.Theme {
	case "", "light", "dark", "system":
	default:
		return fmt.Errorf("workspace.theme must be \"light\", \"dark\", or \"system\", got %q", ws.Theme)
	}
	return nil
}

// ValidateStorage checks storage configuration for errors.
func ValidateStorage(s StorageConfig) error {
	switch s.Backend {
	case BackendSQLite:
		if s.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required when backend is \"sqlite\"")
		}
	case BackendRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required when backend is \"redis\"")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be \"sqlite\", \"redis\", or \"memory\", got %q", s.Backend)
	}
	return nil
}

// ValidateRemote checks remote configuration for errors.
func ValidateRemote(r RemoteConfig) error {
	if r.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	if r.Timeout < 0 || r.CacheTTL < 0 {
		return fmt.Errorf("remote.timeout and remote.cache_ttl must not be negative")
	}
	if r.RateLimit < 0 {
		return fmt.Errorf("remote.rate_limit must not be negative, got %v", r.RateLimit)
	}
	if r.Retry.MaxAttempts < 1 {
		return fmt.Errorf("remote.retry.max_attempts must be at least 1, got %d", r.Retry.MaxAttempts)
	}
	if r.Retry.MaxDelay < r.Retry.BaseDelay {
		return fmt.Errorf("remote.retry.max_delay (%s) must not be less than base_delay (%s)", r.Retry.MaxDelay, r.Retry.BaseDelay)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// SetDefaults registers every default with a viper-style setter.
func SetDefaults(set func(key string, value any)) {
	d := Defaults()
	set("workspace.max_tabs", d.Workspace.MaxTabs)
	set("workspace.auto_save", d.Workspace.AutoSave)
	set("workspace.auto_save_interval", d.Workspace.AutoSaveInterval)
	set("workspace.content_debounce", d.Workspace.ContentDebounce)
	set("workspace.persist_debounce", d.Workspace.PersistDebounce)
	set("workspace.theme", d.Workspace.Theme)
	set("storage.backend", d.Storage.Backend)
	set("storage.sqlite_path", d.Storage.SQLitePath)
	set("storage.redis_addr", d.Storage.RedisAddr)
	set("storage.redis_db", d.Storage.RedisDB)
	set("storage.key_prefix", d.Storage.KeyPrefix)
	set("storage.watch_external", d.Storage.WatchExternal)
	set("remote.base_url", d.Remote.BaseURL)
	set("remote.timeout", d.Remote.Timeout)
	set("remote.cache_ttl", d.Remote.CacheTTL)
	set("remote.rate_limit", d.Remote.RateLimit)
	set("remote.retry.max_attempts", d.Remote.Retry.MaxAttempts)
	set("remote.retry.base_delay", d.Remote.Retry.BaseDelay)
	set("remote.retry.max_delay", d.Remote.Retry.MaxDelay)
	set("tracing.enabled", d.Tracing.Enabled)
	set("tracing.exporter", d.Tracing.Exporter)
	set("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	set("tracing.sample_rate", d.Tracing.SampleRate)
	set("server.addr", d.Server.Addr)
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# diagramdesk configuration

# Workspace behaviour
workspace:
  max_tabs: 10              # Open tabs before the least recently used unpinned tab is evicted
  auto_save: true           # Periodically save the loaded project to the project service
  auto_save_interval: 30s
  content_debounce: 1s      # Delay before an edit is written to its local draft
  persist_debounce: 250ms   # Coalesce workspace snapshot writes
  theme: system             # light, dark, or system

# Where the workspace snapshot and drafts are stored
storage:
  backend: sqlite           # sqlite (default), redis, or memory
  # sqlite_path: ~/.diagramdesk/workspace.db
  # redis_addr: localhost:6379
  # redis_db: 0
  # redis_password: ""
  key_prefix: diagramdesk
  watch_external: false     # Reload when another process writes the sqlite database

# Project service
remote:
  base_url: http://localhost:8420
  timeout: 10s
  # token: ""
  cache_ttl: 1m             # How long project lists and outlines are cached
  # rate_limit: 20          # Requests per second, 0 disables
  retry:
    max_attempts: 3
    base_delay: 1s
    max_delay: 10s

# Distributed tracing
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/diagramdesk/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)

# Reference project service (diagramdesk projectd)
server:
  addr: ":8420"

# Feature flags
# flags:
#   redis-change-feed: true        # Reload when another process writes the redis snapshot
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
