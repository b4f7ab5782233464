package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "score"
log_level = "debug"

[processor]
whale_threshold_usd = 25000.0
batch_timeout = "2s"

[scorer]
alert_threshold = 65
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "score", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.InDelta(t, 25_000, cfg.Processor.WhaleThresholdUSD, 1e-9)
	assert.Equal(t, 2*time.Second, cfg.Processor.BatchTimeout.Duration)
	assert.Equal(t, 65, cfg.Scorer.AlertThreshold)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 50, cfg.Processor.BatchSize)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, "monitor", cfg.Mode)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := writeTOML(t, `mode = [broken`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POLYSIGHT_MODE", "copy")
	t.Setenv("POLYSIGHT_POSTGRES_PASSWORD", "sekret")
	t.Setenv("POLYSIGHT_PROCESSOR_WHALE_THRESHOLD_USD", "42000")
	t.Setenv("POLYSIGHT_SCORER_POLL_INTERVAL", "10s")
	t.Setenv("POLYSIGHT_COPY_TRADING_ENABLED", "true")
	t.Setenv("POLYSIGHT_RISK_ALLOWED_CATEGORIES", "politics, sports")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "copy", cfg.Mode)
	assert.Equal(t, "sekret", cfg.Postgres.Password)
	assert.InDelta(t, 42_000, cfg.Processor.WhaleThresholdUSD, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.Scorer.PollInterval.Duration)
	assert.True(t, cfg.CopyTrade.Enabled)
	assert.Equal(t, []string{"politics", "sports"}, cfg.Risk.AllowedCategories)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := writeTOML(t, `mode = "score"`)
	t.Setenv("POLYSIGHT_MODE", "funnel")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "funnel", cfg.Mode)
}

func TestLoad_IgnoresUnparseableEnvValues(t *testing.T) {
	t.Setenv("POLYSIGHT_PROCESSOR_BATCH_SIZE", "many")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Processor.BatchSize)
}
