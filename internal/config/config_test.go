package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 10, cfg.Workspace.MaxTabs)
	assert.True(t, cfg.Workspace.AutoSave)
	assert.Equal(t, 30*time.Second, cfg.Workspace.AutoSaveInterval)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, 3, cfg.Remote.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Remote.Retry.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Remote.Retry.MaxDelay)
	require.NoError(t, cfg.Validate())
}

func TestValidateWorkspace(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*WorkspaceConfig)
		wantErr string
	}{
		{"zero max tabs", func(w *WorkspaceConfig) { w.MaxTabs = 0 }, "max_tabs"},
		{"short interval", func(w *WorkspaceConfig) { w.AutoSaveInterval = 10 * time.Millisecond }, "auto_save_interval"},
		{"negative debounce", func(w *WorkspaceConfig) { w.ContentDebounce = -1 }, "debounce"},
		{"bad theme", func(w *WorkspaceConfig) { w.Theme = "sepia" }, "workspace.theme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := Defaults().Workspace
			tt.mutate(&ws)
			err := ValidateWorkspace(ws)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateWorkspace_ShortIntervalAllowedWhenAutoSaveOff(t *testing.T) {
	ws := Defaults().Workspace
	ws.AutoSave = false
	ws.AutoSaveInterval = 0
	require.NoError(t, ValidateWorkspace(ws))
}

func TestValidateStorage(t *testing.T) {
	require.NoError(t, ValidateStorage(StorageConfig{Backend: BackendMemory}))
	require.NoError(t, ValidateStorage(StorageConfig{Backend: BackendRedis, RedisAddr: "localhost:6379"}))

	err := ValidateStorage(StorageConfig{Backend: BackendSQLite})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite_path")

	err = ValidateStorage(StorageConfig{Backend: BackendRedis})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis_addr")

	err = ValidateStorage(StorageConfig{Backend: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestValidateRemote(t *testing.T) {
	r := Defaults().Remote
	require.NoError(t, ValidateRemote(r))

	r.BaseURL = ""
	require.ErrorContains(t, ValidateRemote(r), "base_url")

	r = Defaults().Remote
	r.Retry.MaxAttempts = 0
	require.ErrorContains(t, ValidateRemote(r), "max_attempts")

	r = Defaults().Remote
	r.Retry.MaxDelay = r.Retry.BaseDelay / 2
	require.ErrorContains(t, ValidateRemote(r), "max_delay")

	r = Defaults().Remote
	r.RateLimit = -1
	require.ErrorContains(t, ValidateRemote(r), "rate_limit")
}

func TestValidateTracing(t *testing.T) {
	require.NoError(t, ValidateTracing(TracingConfig{}))
	require.NoError(t, ValidateTracing(TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 0.5}))

	require.ErrorContains(t, ValidateTracing(TracingConfig{SampleRate: 1.5}), "sample_rate")
	require.ErrorContains(t, ValidateTracing(TracingConfig{Exporter: "jaeger"}), "tracing.exporter")
	require.ErrorContains(t, ValidateTracing(TracingConfig{Enabled: true, Exporter: "otlp"}), "otlp_endpoint")
}

func TestSetDefaults_ViperUnmarshal(t *testing.T) {
	v := viper.New()
	SetDefaults(v.SetDefault)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	want := Defaults()
	want.Storage.RedisPassword = ""
	want.Tracing.FilePath = ""
	assert.Equal(t, want, cfg)
}

func TestDefaultConfigTemplate_Parses(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(configPath))

	v := viper.New()
	SetDefaults(v.SetDefault)
	v.SetConfigFile(configPath)
	require.NoError(t, v.ReadInConfig())

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	assert.Equal(t, 30*time.Second, cfg.Workspace.AutoSaveInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.Workspace.PersistDebounce)
	assert.Equal(t, "diagramdesk", cfg.Storage.KeyPrefix)
	require.NoError(t, cfg.Validate())
}

func TestWriteDefaultConfig_CreatesDirectory(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ".diagramdesk", "config.yaml")
	require.NoError(t, WriteDefaultConfig(configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
