// Package config defines the top-level configuration for polysight and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYSIGHT_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Processor  ProcessorConfig  `toml:"processor"`
	Discovery  DiscoveryConfig  `toml:"discovery"`
	Scorer     ScorerConfig     `toml:"scorer"`
	CopyTrade  CopyTradeConfig  `toml:"copy_trade"`
	Risk       RiskConfig       `toml:"risk"`
	Funnel     FunnelConfig     `toml:"funnel"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds venue endpoints and API credentials.
type PolymarketConfig struct {
	WsURL            string `toml:"ws_url"`
	DataHost         string `toml:"data_host"`
	ClobHost         string `toml:"clob_host"`
	PolygonRPC       string `toml:"polygon_rpc"`
	RequestsPerMin   int    `toml:"requests_per_min"`
	ApiKey           string `toml:"api_key"`
	ApiSecret        string `toml:"api_secret"`
	ApiPassphrase    string `toml:"api_passphrase"`
	WalletAddress    string `toml:"wallet_address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for cold archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ProcessorConfig holds live-trade processor parameters.
type ProcessorConfig struct {
	WhaleThresholdUSD  float64  `toml:"whale_threshold_usd"`
	InsiderSuspectMin  int      `toml:"insider_suspect_min"`
	BatchSize          int      `toml:"batch_size"`
	BatchTimeout       duration `toml:"batch_timeout"`
	QueueSize          int      `toml:"queue_size"`
	CacheRefresh       duration `toml:"cache_refresh"`
	TradeRetentionDays int      `toml:"trade_retention_days"`
	StaleThreshold     duration `toml:"stale_threshold"`
	HeartbeatInterval  duration `toml:"heartbeat_interval"`
}

// DiscoveryConfig holds wallet discovery parameters.
type DiscoveryConfig struct {
	MinTradeUSD     float64  `toml:"min_trade_usd"`
	Workers         int      `toml:"workers"`
	QueueSize       int      `toml:"queue_size"`
	RequestInterval duration `toml:"request_interval"`
	CooldownDays    int      `toml:"cooldown_days"`
	PageSize        int      `toml:"page_size"`
	MaxItems        int      `toml:"max_items"`
}

// ScorerConfig holds insider scorer parameters.
type ScorerConfig struct {
	PollInterval       duration `toml:"poll_interval"`
	BatchSize          int      `toml:"batch_size"`
	MinTradeUSD        float64  `toml:"min_trade_usd"`
	AlertThreshold     int      `toml:"alert_threshold"`
	AlertRetentionDays int      `toml:"alert_retention_days"`
}

// CopyTradeConfig holds copy-trade sizing and qualification parameters.
type CopyTradeConfig struct {
	Enabled          bool    `toml:"enabled"`
	Paper            bool    `toml:"paper"`
	WatchlistOnly    bool    `toml:"watchlist_only"`
	MinCopyScore     int     `toml:"min_copy_score"`
	CopyFraction     float64 `toml:"copy_fraction"`
	MinCopySizeUSD   float64 `toml:"min_copy_size_usd"`
	MaxCopySizeUSD   float64 `toml:"max_copy_size_usd"`
	MinTradeSizeUSD  float64 `toml:"min_trade_size_usd"`
	MaxDelaySeconds  int     `toml:"max_delay_seconds"`
	RecentCopyMemory int     `toml:"recent_copy_memory"`
}

// RiskConfig holds the risk engine limits.
type RiskConfig struct {
	MaxPositionSizeUSD  float64  `toml:"max_position_size_usd"`
	MaxTotalExposureUSD float64  `toml:"max_total_exposure_usd"`
	MaxSingleOrderUSD   float64  `toml:"max_single_order_usd"`
	MinOrderUSD         float64  `toml:"min_order_usd"`
	MaxDailyLossUSD     float64  `toml:"max_daily_loss_usd"`
	MaxDailyOrders      int      `toml:"max_daily_orders"`
	BlockedMarkets      []string `toml:"blocked_markets"`
	AllowedCategories   []string `toml:"allowed_categories"`
}

// FunnelStageConfig is the per-stage filter policy for the batch funnel.
// Zero values mean "no constraint" for that predicate.
type FunnelStageConfig struct {
	MinVolumeUSD    float64 `toml:"min_volume_usd"`
	MinTradeCount   int     `toml:"min_trade_count"`
	MinWinRate      float64 `toml:"min_win_rate"`
	MinROI          float64 `toml:"min_roi"`
	MaxDrawdown     float64 `toml:"max_drawdown"`
	MinPnLUSD       float64 `toml:"min_pnl_usd"`
	MinProfitFactor float64 `toml:"min_profit_factor"`
}

// FunnelConfig holds the batch funnel schedule and stage policies.
type FunnelConfig struct {
	Enabled  bool                `toml:"enabled"`
	Interval duration            `toml:"interval"`
	Stages   []FunnelStageConfig `toml:"stages"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			WsURL:          "wss://ws-live-data.polymarket.com",
			DataHost:       "https://data-api.polymarket.com",
			ClobHost:       "https://clob.polymarket.com",
			PolygonRPC:     "https://polygon-rpc.com",
			RequestsPerMin: 100,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polysight",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polysight-archive",
			ForcePathStyle: true,
		},
		Processor: ProcessorConfig{
			WhaleThresholdUSD:  10_000,
			InsiderSuspectMin:  60,
			BatchSize:          50,
			BatchTimeout:       duration{500 * time.Millisecond},
			QueueSize:          1000,
			CacheRefresh:       duration{60 * time.Second},
			TradeRetentionDays: 7,
			StaleThreshold:     duration{120 * time.Second},
			HeartbeatInterval:  duration{30 * time.Second},
		},
		Discovery: DiscoveryConfig{
			MinTradeUSD:     1_000,
			Workers:         5,
			QueueSize:       5_000,
			RequestInterval: duration{300 * time.Millisecond},
			CooldownDays:    1,
			PageSize:        500,
			MaxItems:        50_000,
		},
		Scorer: ScorerConfig{
			PollInterval:       duration{3 * time.Second},
			BatchSize:          100,
			MinTradeUSD:        200,
			AlertThreshold:     50,
			AlertRetentionDays: 30,
		},
		CopyTrade: CopyTradeConfig{
			Enabled:          false,
			Paper:            true,
			MinCopyScore:     60,
			CopyFraction:     0.10,
			MinCopySizeUSD:   5,
			MaxCopySizeUSD:   100,
			MinTradeSizeUSD:  50,
			MaxDelaySeconds:  30,
			RecentCopyMemory: 10_000,
		},
		Risk: RiskConfig{
			MaxPositionSizeUSD:  500,
			MaxTotalExposureUSD: 2_000,
			MaxSingleOrderUSD:   200,
			MinOrderUSD:         1,
			MaxDailyLossUSD:     500,
			MaxDailyOrders:      100,
		},
		Funnel: FunnelConfig{
			Enabled:  false,
			Interval: duration{6 * time.Hour},
			Stages: []FunnelStageConfig{
				{MinVolumeUSD: 10_000},
				{MinTradeCount: 20},
				{MinWinRate: 55, MaxDrawdown: 60},
				{MinROI: 10, MinPnLUSD: 1_000},
				{},
				{MinProfitFactor: 1.5},
			},
		},
		Notify: NotifyConfig{
			Events: []string{"whale_trade", "insider_alert", "copy_trade", "kill_switch"},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor": true,
	"score":   true,
	"copy":    true,
	"funnel":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, score, copy, funnel, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Polymarket.WsURL == "" {
		errs = append(errs, "polymarket: ws_url must not be empty")
	}
	if c.Polymarket.DataHost == "" {
		errs = append(errs, "polymarket: data_host must not be empty")
	}
	if c.Polymarket.RequestsPerMin < 1 {
		errs = append(errs, "polymarket: requests_per_min must be >= 1")
	}
	if c.Polymarket.EncryptedKeyPath != "" && c.Polymarket.KeyPassword == "" {
		errs = append(errs, "polymarket: key_password is required when encrypted_key_path is set")
	}

	// Live copy trading needs CLOB credentials from one source or the other.
	if c.CopyTrade.Enabled && !c.CopyTrade.Paper {
		if c.Polymarket.ClobHost == "" {
			errs = append(errs, "polymarket: clob_host is required for live copy trading")
		}
		if c.Polymarket.ApiKey == "" && c.Polymarket.EncryptedKeyPath == "" {
			errs = append(errs, "polymarket: api_key or encrypted_key_path is required for live copy trading")
		}
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	if c.Processor.WhaleThresholdUSD <= 0 {
		errs = append(errs, "processor: whale_threshold_usd must be > 0")
	}
	if c.Processor.BatchSize < 1 {
		errs = append(errs, "processor: batch_size must be >= 1")
	}
	if c.Processor.BatchTimeout.Duration <= 0 {
		errs = append(errs, "processor: batch_timeout must be > 0")
	}

	if c.Discovery.Workers < 1 {
		errs = append(errs, "discovery: workers must be >= 1")
	}
	if c.Discovery.QueueSize < 1 {
		errs = append(errs, "discovery: queue_size must be >= 1")
	}
	if c.Discovery.CooldownDays < 1 {
		errs = append(errs, "discovery: cooldown_days must be >= 1")
	}

	if c.Scorer.PollInterval.Duration <= 0 {
		errs = append(errs, "scorer: poll_interval must be > 0")
	}
	if c.Scorer.AlertThreshold < 0 || c.Scorer.AlertThreshold > 100 {
		errs = append(errs, "scorer: alert_threshold must be 0-100")
	}

	if c.CopyTrade.Enabled {
		if c.CopyTrade.CopyFraction <= 0 || c.CopyTrade.CopyFraction > 1 {
			errs = append(errs, "copy_trade: copy_fraction must be in (0, 1]")
		}
		if c.CopyTrade.MinCopySizeUSD <= 0 {
			errs = append(errs, "copy_trade: min_copy_size_usd must be > 0")
		}
		if c.CopyTrade.MaxCopySizeUSD < c.CopyTrade.MinCopySizeUSD {
			errs = append(errs, "copy_trade: max_copy_size_usd must be >= min_copy_size_usd")
		}
		if c.Risk.MaxDailyLossUSD <= 0 {
			errs = append(errs, "risk: max_daily_loss_usd must be > 0 when copy trading is enabled")
		}
		if c.Risk.MaxTotalExposureUSD <= 0 {
			errs = append(errs, "risk: max_total_exposure_usd must be > 0 when copy trading is enabled")
		}
	}

	if c.Funnel.Enabled && len(c.Funnel.Stages) != 6 {
		errs = append(errs, fmt.Sprintf("funnel: exactly 6 stage policies required, got %d", len(c.Funnel.Stages)))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
