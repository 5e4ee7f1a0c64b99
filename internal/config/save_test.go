package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveTheme_CreatesNewFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	err := SaveTheme(configPath, "dark")
	require.NoError(t, err)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "workspace:")
	assert.Contains(t, string(data), "theme: dark")
}

func TestSaveTheme_InvalidTheme(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	err := SaveTheme(configPath, "sepia")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workspace.theme")

	_, statErr := os.Stat(configPath)
	require.True(t, os.IsNotExist(statErr), "nothing written for an invalid theme")
}

func TestSaveTheme_PreservesOtherConfig(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	initial := `# top comment
workspace:
  max_tabs: 7 # keep me
  theme: light
storage:
  backend: memory
`
	require.NoError(t, os.WriteFile(configPath, []byte(initial), 0o644))

	require.NoError(t, SaveTheme(configPath, "dark"))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "# top comment")
	assert.Contains(t, content, "max_tabs: 7")
	assert.Contains(t, content, "# keep me")
	assert.Contains(t, content, "backend: memory")
	assert.Contains(t, content, "theme: dark")
	assert.NotContains(t, content, "theme: light")
}

func TestSaveTheme_Roundtrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o644))

	require.NoError(t, SaveTheme(configPath, "light"))

	v := viper.New()
	v.SetConfigFile(configPath)
	require.NoError(t, v.ReadInConfig())

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	assert.Equal(t, "light", cfg.Workspace.Theme)
	assert.Equal(t, 10, cfg.Workspace.MaxTabs)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
}

func TestSaveValue_NestedCreation(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  addr: \":9000\"\n"), 0o644))

	require.NoError(t, SaveValue(configPath, []string{"remote", "retry", "max_attempts"}, "5"))

	v := viper.New()
	v.SetConfigFile(configPath)
	require.NoError(t, v.ReadInConfig())
	assert.Equal(t, 5, v.GetInt("remote.retry.max_attempts"))
	assert.Equal(t, ":9000", v.GetString("server.addr"))
}

func TestSaveValue_NonMappingParent(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("workspace: none\n"), 0o644))

	err := SaveValue(configPath, []string{"workspace", "theme"}, "dark")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a mapping")
}

func TestSaveValue_AtomicWrite(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	require.NoError(t, SaveTheme(configPath, "light"))
	require.NoError(t, SaveTheme(configPath, "dark"))

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.Contains(entry.Name(), ".tmp."), "temp file left behind: %s", entry.Name())
	}
}

func TestSaveValue_CreatesDirectory(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "subdir", "nested", "config.yaml")

	require.NoError(t, SaveTheme(configPath, "system"))

	_, err := os.Stat(configPath)
	require.NoError(t, err)
}
