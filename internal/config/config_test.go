package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawld/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err, "a missing config file falls back to defaults")

	assert.Equal(t, "crawld.db", cfg.DatabasePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.RetryDelay())
	assert.Equal(t, 3, cfg.ReconcileThreshold)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 3*time.Second, cfg.BrowserSettle())
}

func TestLoad_File(t *testing.T) {
	yaml := `
database_path: /var/lib/crawld/crawld.db
log_level: debug
retry_delay_minutes: 15
reconcile_threshold: 5
webhook_url: https://hooks.example.com/new-item
`
	path := filepath.Join(t.TempDir(), "crawld.yml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/crawld/crawld.db", cfg.DatabasePath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 15*time.Minute, cfg.RetryDelay())
	assert.Equal(t, 5, cfg.ReconcileThreshold)
	assert.Equal(t, "https://hooks.example.com/new-item", cfg.WebhookURL)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout(), "unset fields keep their defaults")
}

func TestLoad_EnvOverrides(t *testing.T) {
	yaml := "database_path: from-file.db\n"
	path := filepath.Join(t.TempDir(), "crawld.yml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("CRAWLD_DB", "from-env.db")
	t.Setenv("CRAWLD_RETRY_DELAY_MINUTES", "45")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DatabasePath)
	assert.Equal(t, 45*time.Minute, cfg.RetryDelay())
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawld.yml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}
