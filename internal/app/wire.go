package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polysight/internal/blob/s3"
	"github.com/alanyoungcy/polysight/internal/cache/redis"
	"github.com/alanyoungcy/polysight/internal/config"
	"github.com/alanyoungcy/polysight/internal/copytrader"
	"github.com/alanyoungcy/polysight/internal/crypto"
	"github.com/alanyoungcy/polysight/internal/discovery"
	"github.com/alanyoungcy/polysight/internal/domain"
	"github.com/alanyoungcy/polysight/internal/funnel"
	"github.com/alanyoungcy/polysight/internal/notify"
	"github.com/alanyoungcy/polysight/internal/platform/polymarket"
	"github.com/alanyoungcy/polysight/internal/processor"
	"github.com/alanyoungcy/polysight/internal/scorer"
	"github.com/alanyoungcy/polysight/internal/store/postgres"
)

// dependencies holds every constructed component. Only the slice a mode
// needs is populated.
type dependencies struct {
	pg  *postgres.Client
	rdb *redis.Client

	trades        *postgres.TradeStore
	wallets       *postgres.WalletStore
	watchlist     *postgres.WatchlistStore
	alertRules    *postgres.AlertRuleStore
	tradeAlerts   *postgres.TradeAlertStore
	insiderAlerts *postgres.InsiderAlertStore
	orders        *postgres.OrderStore
	positions     *postgres.UserPositionStore
	copyLog       *postgres.CopyLogStore
	cursors       *postgres.CursorStore
	funnelStore   *postgres.FunnelStore

	limiter *redis.RateLimiter
	volumes *redis.VolumeCache
	ages    *redis.AgeCache
	locks   *redis.LockManager

	notifier *notify.Notifier
	archiver *s3blob.Archiver

	data       *polymarket.DataClient
	nonces     *polymarket.NonceClient
	books      *polymarket.BookClient
	clobSecret string

	stream    *polymarket.TradeStream
	batcher   *processor.Batcher
	processor *processor.Processor
	retention *processor.RetentionSweeper
	discovery *discovery.Engine
	scorer    *scorer.Scorer
	trader    *copytrader.Trader
	funnel    *funnel.Runner
}

// wire constructs the dependency graph for the configured mode, registering
// cleanup for everything that opens a connection.
func (a *App) wire(ctx context.Context) (*dependencies, error) {
	cfg := a.cfg
	d := &dependencies{}

	if err := a.wirePostgres(ctx, d); err != nil {
		return nil, err
	}
	if needsRedis(cfg.Mode) {
		if err := a.wireRedis(ctx, d); err != nil {
			return nil, err
		}
	}
	if cfg.S3.Enabled {
		if err := a.wireS3(ctx, d); err != nil {
			return nil, err
		}
	}
	a.wireNotifier(d)
	if err := a.wirePlatform(ctx, d); err != nil {
		return nil, err
	}
	a.wirePipeline(ctx, d)
	return d, nil
}

func needsRedis(mode string) bool {
	switch mode {
	case "monitor", "score", "funnel", "full":
		return true
	}
	return false
}

func needsStream(mode string) bool {
	switch mode {
	case "monitor", "copy", "full":
		return true
	}
	return false
}

func (a *App) wirePostgres(ctx context.Context, d *dependencies) error {
	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      a.cfg.Postgres.DSN,
		Host:     a.cfg.Postgres.Host,
		Port:     a.cfg.Postgres.Port,
		Database: a.cfg.Postgres.Database,
		User:     a.cfg.Postgres.User,
		Password: a.cfg.Postgres.Password,
		SSLMode:  a.cfg.Postgres.SSLMode,
		MaxConns: a.cfg.Postgres.PoolMaxConns,
		MinConns: a.cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return err
	}
	a.onClose(pg.Close)

	if a.cfg.Postgres.RunMigrations {
		if err := pg.RunMigrations(ctx); err != nil {
			return fmt.Errorf("app: migrations: %w", err)
		}
	}

	pool := pg.Pool()
	d.pg = pg
	d.trades = postgres.NewTradeStore(pool)
	d.wallets = postgres.NewWalletStore(pool)
	d.watchlist = postgres.NewWatchlistStore(pool)
	d.alertRules = postgres.NewAlertRuleStore(pool)
	d.tradeAlerts = postgres.NewTradeAlertStore(pool)
	d.insiderAlerts = postgres.NewInsiderAlertStore(pool)
	d.orders = postgres.NewOrderStore(pool)
	d.positions = postgres.NewUserPositionStore(pool)
	d.copyLog = postgres.NewCopyLogStore(pool)
	d.cursors = postgres.NewCursorStore(pool)
	d.funnelStore = postgres.NewFunnelStore(pool)
	return nil
}

func (a *App) wireRedis(ctx context.Context, d *dependencies) error {
	rdb, err := redis.New(ctx, redis.ClientConfig{
		Addr:       a.cfg.Redis.Addr,
		Password:   a.cfg.Redis.Password,
		DB:         a.cfg.Redis.DB,
		PoolSize:   a.cfg.Redis.PoolSize,
		MaxRetries: a.cfg.Redis.MaxRetries,
		TLSEnabled: a.cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return err
	}
	a.onClose(func() {
		if err := rdb.Close(); err != nil {
			a.logger.Warn("redis close failed", slog.String("error", err.Error()))
		}
	})

	d.rdb = rdb
	d.limiter = redis.NewRateLimiter(rdb)
	d.volumes = redis.NewVolumeCache(rdb)
	d.ages = redis.NewAgeCache(rdb)
	d.locks = redis.NewLockManager(rdb)
	return nil
}

func (a *App) wireS3(ctx context.Context, d *dependencies) error {
	client, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       a.cfg.S3.Endpoint,
		Region:         a.cfg.S3.Region,
		Bucket:         a.cfg.S3.Bucket,
		AccessKey:      a.cfg.S3.AccessKey,
		SecretKey:      a.cfg.S3.SecretKey,
		UseSSL:         a.cfg.S3.UseSSL,
		ForcePathStyle: a.cfg.S3.ForcePathStyle,
	})
	if err != nil {
		return err
	}
	d.archiver = s3blob.NewArchiver(s3blob.NewWriter(client), d.trades, d.insiderAlerts)
	return nil
}

func (a *App) wireNotifier(d *dependencies) {
	var senders []notify.Sender
	if a.cfg.Notify.TelegramToken != "" && a.cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(a.cfg.Notify.TelegramToken, a.cfg.Notify.TelegramChatID))
	}
	if a.cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(a.cfg.Notify.DiscordWebhookURL))
	}
	d.notifier = notify.NewNotifier(senders, a.cfg.Notify.Events, a.logger)
}

func (a *App) wirePlatform(ctx context.Context, d *dependencies) error {
	pm := a.cfg.Polymarket

	var limiter domain.RateLimiter
	if d.limiter != nil {
		limiter = d.limiter
	}
	d.data = polymarket.NewDataClient(polymarket.DataConfig{
		BaseURL:        pm.DataHost,
		RequestsPerMin: pm.RequestsPerMin,
		PageSize:       a.cfg.Discovery.PageSize,
		MaxItems:       a.cfg.Discovery.MaxItems,
	}, limiter)

	if pm.PolygonRPC != "" {
		nonces, err := polymarket.DialNonceClient(ctx, pm.PolygonRPC)
		if err != nil {
			a.logger.Warn("polygon rpc unavailable, nonce signals disabled",
				slog.String("error", err.Error()),
			)
		} else {
			d.nonces = nonces
			a.onClose(nonces.Close)
		}
	}

	if pm.ClobHost != "" {
		d.books = polymarket.NewBookClient(pm.ClobHost)
	}

	// Resolve the CLOB API secret now so unreadable key material fails the
	// start, not the first live order. The encrypted envelope wins over a
	// plaintext api_secret in config.
	d.clobSecret = pm.ApiSecret
	if pm.EncryptedKeyPath != "" {
		secret, err := crypto.LoadSecret(crypto.SecretConfig{
			EncryptedPath: pm.EncryptedKeyPath,
			Password:      pm.KeyPassword,
		})
		if err != nil {
			return fmt.Errorf("app: load clob secret: %w", err)
		}
		d.clobSecret = secret
	}
	return nil
}

// wirePipeline builds the processing components on top of the stores and
// platform clients.
func (a *App) wirePipeline(ctx context.Context, d *dependencies) {
	cfg := a.cfg

	d.batcher = processor.NewBatcher(processor.BatcherConfig{
		BatchSize:    cfg.Processor.BatchSize,
		BatchTimeout: cfg.Processor.BatchTimeout.Duration,
		QueueSize:    cfg.Processor.QueueSize,
	}, d.trades, a.logger)

	d.processor = processor.New(processor.Config{
		WhaleThresholdUSD: cfg.Processor.WhaleThresholdUSD,
		InsiderSuspectMin: cfg.Processor.InsiderSuspectMin,
		CacheRefresh:      cfg.Processor.CacheRefresh.Duration,
	}, d.wallets, d.watchlist, d.alertRules, d.tradeAlerts, d.batcher, d.notifier, a.logger)

	var tradeArchiver processor.TradeArchiver
	if d.archiver != nil {
		tradeArchiver = d.archiver
	}
	d.retention = processor.NewRetentionSweeper(
		d.trades, d.tradeAlerts, tradeArchiver, cfg.Processor.TradeRetentionDays, a.logger,
	)

	var nonces discovery.NonceSource
	if d.nonces != nil {
		nonces = d.nonces
	}
	d.discovery = discovery.NewEngine(discovery.Config{
		MinTradeUSD:     cfg.Discovery.MinTradeUSD,
		Workers:         cfg.Discovery.Workers,
		QueueSize:       cfg.Discovery.QueueSize,
		RequestInterval: cfg.Discovery.RequestInterval.Duration,
		Cooldown:        time24h(cfg.Discovery.CooldownDays),
	}, d.data, nonces, d.wallets, a.logger)

	var scorerNonces scorer.NonceSource
	if d.nonces != nil {
		scorerNonces = d.nonces
	}
	var alertArchiver scorer.AlertArchiver
	if d.archiver != nil {
		alertArchiver = d.archiver
	}
	var volumes domain.VolumeCache
	if d.volumes != nil {
		volumes = d.volumes
	}
	var ages domain.AgeCache
	if d.ages != nil {
		ages = d.ages
	}
	d.scorer = scorer.New(scorer.Config{
		PollInterval:       cfg.Scorer.PollInterval.Duration,
		BatchSize:          cfg.Scorer.BatchSize,
		MinTradeUSD:        cfg.Scorer.MinTradeUSD,
		AlertThreshold:     cfg.Scorer.AlertThreshold,
		AlertRetentionDays: cfg.Scorer.AlertRetentionDays,
	}, d.trades, d.wallets, d.insiderAlerts, d.cursors,
		volumes, ages, d.data, scorerNonces, alertArchiver, d.notifier, a.logger)

	a.wireCopyTrader(ctx, d)

	d.funnel = funnel.NewRunner(funnelConfig(cfg), d.wallets, d.funnelStore, funnelLocks(d), d.notifier, a.logger)

	if needsStream(cfg.Mode) {
		d.stream = polymarket.NewTradeStream(polymarket.StreamConfig{
			URL:               cfg.Polymarket.WsURL,
			HeartbeatInterval: cfg.Processor.HeartbeatInterval.Duration,
			StaleThreshold:    cfg.Processor.StaleThreshold.Duration,
		}, a.streamHandler(ctx, d), a.logger)
	}
}

func (a *App) wireCopyTrader(ctx context.Context, d *dependencies) {
	cfg := a.cfg
	pm := cfg.Polymarket

	var live polymarket.Clob
	if pm.ClobHost != "" && pm.ApiKey != "" && d.clobSecret != "" {
		auth := &crypto.HMACAuth{
			Key:        pm.ApiKey,
			Secret:     d.clobSecret,
			Passphrase: pm.ApiPassphrase,
		}
		live = polymarket.NewLiveClob(pm.ClobHost, pm.WalletAddress, auth)
	}

	var books polymarket.BookSource
	if d.books != nil {
		books = d.books
	}
	paper := polymarket.NewPaperClob(books)

	var onTrip copytrader.KillSwitchHook
	if d.notifier != nil {
		notifier := d.notifier
		onTrip = func(reason string) {
			if err := notifier.KillSwitch(ctx, reason); err != nil {
				a.logger.Warn("kill switch notification failed", slog.String("error", err.Error()))
			}
		}
	}

	risk := copytrader.NewRiskEngine(copytrader.RiskLimits{
		MaxPositionSizeUSD:  cfg.Risk.MaxPositionSizeUSD,
		MaxTotalExposureUSD: cfg.Risk.MaxTotalExposureUSD,
		MaxSingleOrderUSD:   cfg.Risk.MaxSingleOrderUSD,
		MinOrderUSD:         cfg.Risk.MinOrderUSD,
		MaxDailyLossUSD:     cfg.Risk.MaxDailyLossUSD,
		MaxDailyOrders:      cfg.Risk.MaxDailyOrders,
		BlockedMarkets:      cfg.Risk.BlockedMarkets,
		AllowedCategories:   cfg.Risk.AllowedCategories,
	}, onTrip)

	tracker := copytrader.NewPositionTracker(d.positions, a.logger)

	d.trader = copytrader.New(copytrader.Config{
		Enabled:          cfg.CopyTrade.Enabled,
		Paper:            cfg.CopyTrade.Paper,
		WatchlistOnly:    cfg.CopyTrade.WatchlistOnly,
		MinCopyScore:     cfg.CopyTrade.MinCopyScore,
		CopyFraction:     cfg.CopyTrade.CopyFraction,
		MinCopySizeUSD:   cfg.CopyTrade.MinCopySizeUSD,
		MaxCopySizeUSD:   cfg.CopyTrade.MaxCopySizeUSD,
		MinTradeSizeUSD:  cfg.CopyTrade.MinTradeSizeUSD,
		MaxDelay:         secondsDuration(cfg.CopyTrade.MaxDelaySeconds),
		RecentCopyMemory: cfg.CopyTrade.RecentCopyMemory,
	}, live, paper, risk, tracker, books,
		d.orders, d.copyLog, d.wallets, d.watchlist, d.notifier, a.logger)
}

// streamHandler adapts raw feed messages into the processor.
func (a *App) streamHandler(ctx context.Context, d *dependencies) polymarket.TradeHandler {
	return func(msg polymarket.TradeMessage, receivedAt time.Time) {
		t, ok := msg.ToDomain(receivedAt)
		if !ok {
			return
		}
		d.processor.Process(ctx, t)
	}
}

func funnelConfig(cfg *config.Config) funnel.Config {
	fc := funnel.Config{Interval: cfg.Funnel.Interval.Duration}
	for i, s := range cfg.Funnel.Stages {
		if i >= len(fc.Stages) {
			break
		}
		fc.Stages[i] = funnel.StagePolicy{
			MinVolumeUSD:    s.MinVolumeUSD,
			MinTradeCount:   s.MinTradeCount,
			MinWinRate:      s.MinWinRate,
			MinROI:          s.MinROI,
			MaxDrawdown:     s.MaxDrawdown,
			MinPnLUSD:       s.MinPnLUSD,
			MinProfitFactor: s.MinProfitFactor,
		}
	}
	return fc
}

func funnelLocks(d *dependencies) domain.LockManager {
	if d.locks == nil {
		return nil
	}
	return d.locks
}

func time24h(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

func secondsDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
