package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Server.TrustProxy)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "com", cfg.Zoho.Region)
	assert.Equal(t, 20*time.Second, cfg.Zoho.Timeout())
	assert.Equal(t, time.Minute, cfg.Token.Skew())
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay())
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay())
	assert.InDelta(t, 2.0, cfg.Retry.Multiplier, 0.001)
	assert.Equal(t, "@every 5m", cfg.Sync.Schedule)
	assert.Equal(t, 10, cfg.Sync.BatchLimit)
	assert.Equal(t, 1, cfg.Sync.Concurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: leads.db
zoho:
  region: in
retry:
  max_attempts: 5
sync:
  concurrency: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leadsync.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leads.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "in", cfg.Zoho.Region)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 4, cfg.Sync.Concurrency)
	assert.Equal(t, 10, cfg.Sync.BatchLimit)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leadsync.yaml"), []byte(yaml), 0644))
	t.Setenv("LEADSYNC_SERVER_PORT", "7070")
	t.Setenv("LEADSYNC_ZOHO_CLIENT_ID", "1000.ABC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "1000.ABC", cfg.Zoho.ClientID)
}

func TestLoadRejectsInvalidDriver(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LEADSYNC_STORE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store: StoreConfig{Driver: "sqlite"},
			Retry: RetryConfig{MaxAttempts: 3, BaseDelayMs: 1000},
			Sync:  SyncConfig{BatchLimit: 10, Concurrency: 1},
		}
	}

	cfg := valid()
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Retry.MaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Sync.Concurrency = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Token.SkewSecs = -1
	assert.Error(t, cfg.Validate())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))

	assert.Error(t, InitLogger(LogConfig{Level: "loud"}))
}
