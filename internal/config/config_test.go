package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:8730", cfg.Listen)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 100, cfg.HistoryLimit)
	assert.False(t, cfg.MemoryStore)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
listen = "0.0.0.0:9000"
log_level = "debug"
history_limit = 25
webhook_urls = ["http://hooks.example.com/a", "http://hooks.example.com/b"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 25, cfg.HistoryLimit)
	assert.Len(t, cfg.WebhookURLs, 2)

	// Unset keys keep their defaults.
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("listen = ["), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_NegativeHistoryLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("history_limit = -5"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Listen = "10.0.0.1:8000"
	cfg.AdminToken = "secret"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Listen, loaded.Listen)
	assert.Equal(t, cfg.AdminToken, loaded.AdminToken)
}

func TestDatabasePath(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/collabsync"}
	assert.Equal(t, filepath.Join("/var/lib/collabsync", DatabaseFile), cfg.DatabasePath())
}
