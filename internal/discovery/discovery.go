package discovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polysight/internal/domain"
	"github.com/alanyoungcy/polysight/internal/platform/polymarket"
)

// VenueData is the slice of the data API the engine needs for one wallet.
type VenueData interface {
	Positions(ctx context.Context, address string) ([]domain.OpenPosition, error)
	ClosedPositions(ctx context.Context, address string) ([]domain.ClosedPosition, error)
	Value(ctx context.Context, address string) (float64, error)
	Profile(ctx context.Context, address string) (polymarket.APIProfile, error)
	Activity(ctx context.Context, address string) ([]polymarket.APIActivity, error)
}

// NonceSource resolves on-chain transaction counts. Optional.
type NonceSource interface {
	TransactionCount(ctx context.Context, address string) (uint64, error)
}

// Config holds the discovery engine parameters.
type Config struct {
	MinTradeUSD     float64       // enqueue threshold, ~$1k
	Workers         int           // ~5
	QueueSize       int           // ~5000
	RequestInterval time.Duration // per-worker pacing, ~300ms
	Cooldown        time.Duration // reanalysis cooldown, ~24h
}

// Engine keeps a metrics row fresh for every wallet whose trades cross the
// discovery threshold. It watches the enriched stream, queues unknown or
// stale addresses, and runs a small worker pool that pulls each wallet's
// history from the data API and derives its metrics.
type Engine struct {
	cfg Config

	data    VenueData
	nonce   NonceSource
	wallets domain.WalletStore
	logger  *slog.Logger

	queue chan string

	mu           sync.Mutex
	known        map[string]struct{}
	lastAnalyzed map[string]time.Time
	pending      map[string]struct{}

	analyzed atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
}

// NewEngine creates a discovery engine. nonce may be nil.
func NewEngine(cfg Config, data VenueData, nonce NonceSource, wallets domain.WalletStore, logger *slog.Logger) *Engine {
	if cfg.MinTradeUSD <= 0 {
		cfg.MinTradeUSD = 1_000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 5_000
	}
	if cfg.RequestInterval <= 0 {
		cfg.RequestInterval = 300 * time.Millisecond
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 24 * time.Hour
	}
	return &Engine{
		cfg:          cfg,
		data:         data,
		nonce:        nonce,
		wallets:      wallets,
		logger:       logger.With(slog.String("component", "discovery")),
		queue:        make(chan string, cfg.QueueSize),
		known:        make(map[string]struct{}),
		lastAnalyzed: make(map[string]time.Time),
		pending:      make(map[string]struct{}),
	}
}

// Analyzed returns the cumulative count of completed wallet analyses.
func (e *Engine) Analyzed() uint64 { return e.analyzed.Load() }

// Dropped returns the cumulative count of addresses lost to queue overflow.
func (e *Engine) Dropped() uint64 { return e.dropped.Load() }

// Consider inspects one enriched trade and queues the trader for analysis
// when the trade crosses the threshold and the wallet is unknown or stale.
// On a full queue the address is silently dropped; the wallet requeues on
// its next trade.
func (e *Engine) Consider(t domain.Trade) {
	if t.USDValue < e.cfg.MinTradeUSD {
		return
	}
	if !e.claim(t.Trader) {
		return
	}

	select {
	case e.queue <- t.Trader:
	default:
		e.release(t.Trader)
		e.dropped.Add(1)
	}
}

// claim decides whether the address needs analysis and marks it pending.
func (e *Engine) claim(address string) bool {
	now := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, inFlight := e.pending[address]; inFlight {
		return false
	}
	if _, known := e.known[address]; known {
		if last, ok := e.lastAnalyzed[address]; ok && now.Sub(last) < e.cfg.Cooldown {
			return false
		}
	}
	e.pending[address] = struct{}{}
	return true
}

func (e *Engine) release(address string) {
	e.mu.Lock()
	delete(e.pending, address)
	e.mu.Unlock()
}

// Run loads the known-wallet state and drains the queue with the worker pool
// until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.loadState(ctx); err != nil {
		e.logger.WarnContext(ctx, "known-wallet load failed, starting empty",
			slog.String("error", err.Error()),
		)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < e.cfg.Workers; i++ {
		g.Go(func() error { return e.worker(ctx) })
	}
	return g.Wait()
}

// loadState seeds the known set and staleness map from the store.
func (e *Engine) loadState(ctx context.Context) error {
	addresses, err := e.wallets.ListAddresses(ctx)
	if err != nil {
		return err
	}
	ages, err := e.wallets.ListMetricsAges(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	for _, addr := range addresses {
		e.known[addr] = struct{}{}
	}
	for addr, at := range ages {
		e.lastAnalyzed[addr] = at
	}
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "known wallets loaded", slog.Int("count", len(addresses)))
	return nil
}

// worker pulls addresses off the queue, keeping at least RequestInterval
// between the starts of consecutive analyses.
func (e *Engine) worker(ctx context.Context) error {
	var lastStart time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case address := <-e.queue:
			if wait := e.cfg.RequestInterval - time.Since(lastStart); wait > 0 {
				select {
				case <-ctx.Done():
					e.release(address)
					return ctx.Err()
				case <-time.After(wait):
				}
			}
			lastStart = time.Now()
			e.analyze(ctx, address)
		}
	}
}

// walletSnapshot is the raw per-wallet fetch result. Failed sources stay at
// their zero value.
type walletSnapshot struct {
	open     []domain.OpenPosition
	closed   []domain.ClosedPosition
	value    float64
	profile  polymarket.APIProfile
	activity []polymarket.APIActivity
	nonce    uint64

	errs int
}

// analyze pulls one wallet's history, folds it, derives metrics and upserts
// the analytics row.
func (e *Engine) analyze(ctx context.Context, address string) {
	defer e.release(address)

	snap, err := e.fetch(ctx, address)
	if err != nil {
		e.failed.Add(1)
		e.logger.WarnContext(ctx, "wallet fetch failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		return
	}

	now := time.Now().UTC()
	folded := FoldPositions(snap.open, snap.closed)
	metrics := ComputeMetrics(folded, snap.value, now)
	behavior := ComputeBehavior(folded, snap.activity, metrics.AllTime.MaxDrawdown)

	w := domain.Wallet{
		Address:          address,
		Source:           "discovery",
		Username:         snap.profile.Username(),
		Balance:          cashBalance(snap.value, snap.open),
		PortfolioValue:   snap.value,
		Nonce:            snap.nonce,
		AllTime:          metrics.AllTime,
		Last7d:           metrics.Last7d,
		Last30d:          metrics.Last30d,
		ProfitFactor30d:  metrics.ProfitFactor30d,
		CopyScore:        copyScore(metrics),
		RedFlags:         redFlags(metrics, behavior),
		Behavior:         behavior,
		MetricsUpdatedAt: now,
	}
	if !snap.profile.CreatedAt.Time.IsZero() {
		created := snap.profile.CreatedAt.Time
		w.AccountCreatedAt = &created
	}

	// The scorer owns the insider score and manual rows own their source;
	// carry both across the refresh.
	if existing, err := e.wallets.Get(ctx, address); err == nil {
		w.InsiderScore = existing.InsiderScore
		if existing.Source != "" && existing.Source != "discovery" {
			w.Source = existing.Source
		}
		if w.AccountCreatedAt == nil {
			w.AccountCreatedAt = existing.AccountCreatedAt
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		e.logger.WarnContext(ctx, "wallet lookup failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
	}

	if err := e.wallets.Upsert(ctx, w); err != nil {
		e.failed.Add(1)
		e.logger.ErrorContext(ctx, "wallet upsert failed",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		return
	}

	e.mu.Lock()
	e.known[address] = struct{}{}
	e.lastAnalyzed[address] = now
	e.mu.Unlock()

	e.analyzed.Add(1)
	e.logger.DebugContext(ctx, "wallet analyzed",
		slog.String("address", address),
		slog.Int("trades", metrics.AllTime.TradeCount),
		slog.Int("copy_score", w.CopyScore),
	)
}

// fetch pulls every source for one wallet in parallel. Individual failures
// read as empty; only a wallet with no source at all is an error.
func (e *Engine) fetch(ctx context.Context, address string) (walletSnapshot, error) {
	var snap walletSnapshot
	var mu sync.Mutex

	fail := func(err error, source string) {
		mu.Lock()
		snap.errs++
		mu.Unlock()
		e.logger.DebugContext(ctx, "wallet source unavailable",
			slog.String("address", address),
			slog.String("source", source),
			slog.String("error", err.Error()),
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		open, err := e.data.Positions(gctx, address)
		if err != nil {
			fail(err, "positions")
			return nil
		}
		snap.open = open
		return nil
	})
	g.Go(func() error {
		closed, err := e.data.ClosedPositions(gctx, address)
		if err != nil {
			fail(err, "closed_positions")
			return nil
		}
		snap.closed = closed
		return nil
	})
	g.Go(func() error {
		value, err := e.data.Value(gctx, address)
		if err != nil {
			fail(err, "value")
			return nil
		}
		snap.value = value
		return nil
	})
	g.Go(func() error {
		profile, err := e.data.Profile(gctx, address)
		if err != nil {
			fail(err, "profile")
			return nil
		}
		snap.profile = profile
		return nil
	})
	g.Go(func() error {
		activity, err := e.data.Activity(gctx, address)
		if err != nil {
			fail(err, "activity")
			return nil
		}
		snap.activity = activity
		return nil
	})
	if e.nonce != nil {
		g.Go(func() error {
			nonce, err := e.nonce.TransactionCount(gctx, address)
			if err != nil {
				fail(err, "nonce")
				return nil
			}
			snap.nonce = nonce
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return snap, err
	}

	if snap.errs >= 5 {
		return snap, domain.ErrUpstreamUnavailable
	}
	return snap, nil
}

// cashBalance estimates free cash as total account value minus the marked
// value of open positions.
func cashBalance(value float64, open []domain.OpenPosition) float64 {
	cash := value
	for _, p := range open {
		cash -= p.CurrentValue
	}
	if cash < 0 {
		return 0
	}
	return cash
}
