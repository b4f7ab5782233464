package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("5m")))
	assert.Equal(t, 5*time.Minute, d.Duration)

	require.NoError(t, d.UnmarshalText([]byte("1h30m")))
	assert.Equal(t, 90*time.Minute, d.Duration)

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestDuration_RoundTrip(t *testing.T) {
	d := duration{30 * time.Second}
	text, err := d.MarshalText()
	require.NoError(t, err)

	var back duration
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, d.Duration, back.Duration)
}

func TestValidate_UnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_MissingEndpoints(t *testing.T) {
	cfg := Defaults()
	cfg.Polymarket.WsURL = ""
	cfg.Polymarket.DataHost = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws_url")
	assert.Contains(t, err.Error(), "data_host")
}

func TestValidate_LiveCopyTradingNeedsCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.CopyTrade.Enabled = true
	cfg.CopyTrade.Paper = false
	cfg.Polymarket.ClobHost = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clob_host")
	assert.Contains(t, err.Error(), "api_key or encrypted_key_path")
}

func TestValidate_CopyTradeBounds(t *testing.T) {
	cfg := Defaults()
	cfg.CopyTrade.Enabled = true
	cfg.CopyTrade.CopyFraction = 1.5
	cfg.CopyTrade.MaxCopySizeUSD = 1 // below min

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy_fraction")
	assert.Contains(t, err.Error(), "max_copy_size_usd")
}

func TestValidate_EncryptedKeyNeedsPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Polymarket.EncryptedKeyPath = "/secrets/key.enc"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password")
}

func TestValidate_FunnelStageCount(t *testing.T) {
	cfg := Defaults()
	cfg.Funnel.Enabled = true
	cfg.Funnel.Stages = cfg.Funnel.Stages[:4]

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "6 stage policies")
}

func TestValidate_DSNSkipsHostChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.DSN = "postgres://u:p@db:5432/polysight"
	cfg.Postgres.Host = ""
	cfg.Postgres.Port = 0
	cfg.Postgres.Database = ""

	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "unknown log_level")
	assert.Contains(t, err.Error(), "redis: addr")
}
