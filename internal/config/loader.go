package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYSIGHT_* environment variable overrides, and
// returns the final Config. A missing file is not an error: defaults plus
// environment overrides apply. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYSIGHT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.WsURL, "POLYSIGHT_POLYMARKET_WS_URL")
	setStr(&cfg.Polymarket.DataHost, "POLYSIGHT_POLYMARKET_DATA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "POLYSIGHT_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.PolygonRPC, "POLYSIGHT_POLYMARKET_POLYGON_RPC")
	setInt(&cfg.Polymarket.RequestsPerMin, "POLYSIGHT_POLYMARKET_REQUESTS_PER_MIN")
	setStr(&cfg.Polymarket.ApiKey, "POLYSIGHT_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.ApiSecret, "POLYSIGHT_POLYMARKET_API_SECRET")
	setStr(&cfg.Polymarket.ApiPassphrase, "POLYSIGHT_POLYMARKET_API_PASSPHRASE")
	setStr(&cfg.Polymarket.WalletAddress, "POLYSIGHT_POLYMARKET_WALLET_ADDRESS")
	setStr(&cfg.Polymarket.EncryptedKeyPath, "POLYSIGHT_POLYMARKET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Polymarket.KeyPassword, "POLYSIGHT_POLYMARKET_KEY_PASSWORD")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYSIGHT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POLYSIGHT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYSIGHT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYSIGHT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYSIGHT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYSIGHT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYSIGHT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYSIGHT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYSIGHT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYSIGHT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYSIGHT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYSIGHT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYSIGHT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYSIGHT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYSIGHT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYSIGHT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYSIGHT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYSIGHT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYSIGHT_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYSIGHT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYSIGHT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYSIGHT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYSIGHT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYSIGHT_S3_FORCE_PATH_STYLE")

	// ── Processor ──
	setFloat64(&cfg.Processor.WhaleThresholdUSD, "POLYSIGHT_PROCESSOR_WHALE_THRESHOLD_USD")
	setInt(&cfg.Processor.InsiderSuspectMin, "POLYSIGHT_PROCESSOR_INSIDER_SUSPECT_MIN")
	setInt(&cfg.Processor.BatchSize, "POLYSIGHT_PROCESSOR_BATCH_SIZE")
	setDuration(&cfg.Processor.BatchTimeout, "POLYSIGHT_PROCESSOR_BATCH_TIMEOUT")
	setInt(&cfg.Processor.QueueSize, "POLYSIGHT_PROCESSOR_QUEUE_SIZE")
	setDuration(&cfg.Processor.CacheRefresh, "POLYSIGHT_PROCESSOR_CACHE_REFRESH")
	setInt(&cfg.Processor.TradeRetentionDays, "POLYSIGHT_PROCESSOR_TRADE_RETENTION_DAYS")
	setDuration(&cfg.Processor.StaleThreshold, "POLYSIGHT_PROCESSOR_STALE_THRESHOLD")
	setDuration(&cfg.Processor.HeartbeatInterval, "POLYSIGHT_PROCESSOR_HEARTBEAT_INTERVAL")

	// ── Discovery ──
	setFloat64(&cfg.Discovery.MinTradeUSD, "POLYSIGHT_DISCOVERY_MIN_TRADE_USD")
	setInt(&cfg.Discovery.Workers, "POLYSIGHT_DISCOVERY_WORKERS")
	setInt(&cfg.Discovery.QueueSize, "POLYSIGHT_DISCOVERY_QUEUE_SIZE")
	setDuration(&cfg.Discovery.RequestInterval, "POLYSIGHT_DISCOVERY_REQUEST_INTERVAL")
	setInt(&cfg.Discovery.CooldownDays, "POLYSIGHT_DISCOVERY_COOLDOWN_DAYS")
	setInt(&cfg.Discovery.PageSize, "POLYSIGHT_DISCOVERY_PAGE_SIZE")
	setInt(&cfg.Discovery.MaxItems, "POLYSIGHT_DISCOVERY_MAX_ITEMS")

	// ── Scorer ──
	setDuration(&cfg.Scorer.PollInterval, "POLYSIGHT_SCORER_POLL_INTERVAL")
	setInt(&cfg.Scorer.BatchSize, "POLYSIGHT_SCORER_BATCH_SIZE")
	setFloat64(&cfg.Scorer.MinTradeUSD, "POLYSIGHT_SCORER_MIN_TRADE_USD")
	setInt(&cfg.Scorer.AlertThreshold, "POLYSIGHT_SCORER_ALERT_THRESHOLD")
	setInt(&cfg.Scorer.AlertRetentionDays, "POLYSIGHT_SCORER_ALERT_RETENTION_DAYS")

	// ── Copy trade ──
	setBool(&cfg.CopyTrade.Enabled, "POLYSIGHT_COPY_TRADING_ENABLED")
	setBool(&cfg.CopyTrade.Paper, "POLYSIGHT_PAPER_TRADING")
	setBool(&cfg.CopyTrade.WatchlistOnly, "POLYSIGHT_COPY_WATCHLIST_ONLY")
	setInt(&cfg.CopyTrade.MinCopyScore, "POLYSIGHT_MIN_COPYTRADE_SCORE")
	setFloat64(&cfg.CopyTrade.CopyFraction, "POLYSIGHT_COPY_FRACTION")
	setFloat64(&cfg.CopyTrade.MinCopySizeUSD, "POLYSIGHT_MIN_COPY_SIZE_USD")
	setFloat64(&cfg.CopyTrade.MaxCopySizeUSD, "POLYSIGHT_MAX_COPY_SIZE_USD")
	setFloat64(&cfg.CopyTrade.MinTradeSizeUSD, "POLYSIGHT_MIN_TRADE_SIZE_USD")
	setInt(&cfg.CopyTrade.MaxDelaySeconds, "POLYSIGHT_COPY_MAX_DELAY_SECONDS")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxPositionSizeUSD, "POLYSIGHT_MAX_POSITION_SIZE_USD")
	setFloat64(&cfg.Risk.MaxTotalExposureUSD, "POLYSIGHT_MAX_TOTAL_EXPOSURE_USD")
	setFloat64(&cfg.Risk.MaxSingleOrderUSD, "POLYSIGHT_MAX_SINGLE_ORDER_USD")
	setFloat64(&cfg.Risk.MaxDailyLossUSD, "POLYSIGHT_MAX_DAILY_LOSS_USD")
	setInt(&cfg.Risk.MaxDailyOrders, "POLYSIGHT_MAX_DAILY_ORDERS")
	setStringSlice(&cfg.Risk.BlockedMarkets, "POLYSIGHT_RISK_BLOCKED_MARKETS")
	setStringSlice(&cfg.Risk.AllowedCategories, "POLYSIGHT_RISK_ALLOWED_CATEGORIES")

	// ── Funnel ──
	setBool(&cfg.Funnel.Enabled, "POLYSIGHT_FUNNEL_ENABLED")
	setDuration(&cfg.Funnel.Interval, "POLYSIGHT_FUNNEL_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYSIGHT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYSIGHT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYSIGHT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYSIGHT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYSIGHT_MODE")
	setStr(&cfg.LogLevel, "POLYSIGHT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
