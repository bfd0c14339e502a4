package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8084", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, 3, cfg.Sync.MissedSyncThreshold)
	assert.Equal(t, 3, cfg.Upstream.MaxRetries)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadConfigFromYAML(t *testing.T) {
	content := `
server:
  port: "9090"
database:
  type: sqlite
  sqlite:
    path: /tmp/test.db
sync:
  missed_sync_threshold: 5
  cities:
    - city: Austin
      state: TX
    - city: Dallas
      state: TX
upstream:
  timeout_seconds: 10
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "/tmp/test.db", cfg.Database.SQLite.Path)
	assert.Equal(t, 5, cfg.Sync.MissedSyncThreshold)
	require.Len(t, cfg.Sync.Cities, 2)
	assert.Equal(t, "Austin", cfg.Sync.Cities[0].City)
	assert.Equal(t, 10*time.Second, cfg.Upstream.GetTimeout())

	// Fields absent from the file keep their defaults.
	assert.Equal(t, 3, cfg.Upstream.MaxRetries)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	content := `
server:
  port: "9090"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("PORT", "7070")
	t.Setenv("PROVIDER_API_KEY", "secret-key")
	t.Setenv("DB_TYPE", "sqlite")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "secret-key", cfg.Upstream.APIKey)
	assert.Equal(t, "sqlite", cfg.Database.Type)
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDurationHelpers(t *testing.T) {
	cfg := UpstreamConfig{
		TimeoutSeconds:      30,
		RetryDelaySeconds:   2,
		RequestDelayMillis:  500,
		RequestJitterMillis: 250,
	}

	assert.Equal(t, 30*time.Second, cfg.GetTimeout())
	assert.Equal(t, 2*time.Second, cfg.GetRetryDelay())
	assert.Equal(t, 500*time.Millisecond, cfg.GetRequestDelay())
	assert.Equal(t, 250*time.Millisecond, cfg.GetRequestJitter())
}
