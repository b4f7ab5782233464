// Package processor enriches, classifies and selectively persists the live
// trade stream, and fires alert rules synchronously.
package processor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// Config holds the processor parameters.
type Config struct {
	WhaleThresholdUSD float64       // ~$10k
	InsiderSuspectMin int           // ~60
	CacheRefresh      time.Duration // ~60s
}

// Notifier is the outbound alert surface the processor uses. Optional.
type Notifier interface {
	WhaleTrade(ctx context.Context, t domain.Trade) error
}

// caches is the copy-on-write snapshot read by the hot path and rebuilt by
// the refresher. Hot-path code captures one pointer per trade and never sees
// a partially updated view.
type caches struct {
	facts     map[string]domain.WalletFacts
	watchlist map[string][]domain.WatchlistEntry
	rules     []domain.AlertRule
}

// Processor enriches every parsed trade with cached wallet facts, applies
// whale/watchlist/insider flags, stages significant trades for batched
// persistence, and evaluates alert rules. Other consumers (discovery, copy
// trader) subscribe to the enriched stream.
type Processor struct {
	cfg Config

	wallets    domain.WalletStore
	watchlist  domain.WatchlistStore
	ruleStore  domain.AlertRuleStore
	alertStore domain.TradeAlertStore

	batcher  *Batcher
	session  *SessionScorer
	notifier Notifier
	logger   *slog.Logger

	cache atomic.Pointer[caches]

	mu          sync.RWMutex
	subscribers []func(domain.Trade)

	observed atomic.Uint64
}

// New creates a Processor. notifier may be nil.
func New(
	cfg Config,
	wallets domain.WalletStore,
	watchlist domain.WatchlistStore,
	ruleStore domain.AlertRuleStore,
	alertStore domain.TradeAlertStore,
	batcher *Batcher,
	notifier Notifier,
	logger *slog.Logger,
) *Processor {
	if cfg.WhaleThresholdUSD <= 0 {
		cfg.WhaleThresholdUSD = 10_000
	}
	if cfg.InsiderSuspectMin <= 0 {
		cfg.InsiderSuspectMin = 60
	}
	if cfg.CacheRefresh <= 0 {
		cfg.CacheRefresh = time.Minute
	}

	p := &Processor{
		cfg:        cfg,
		wallets:    wallets,
		watchlist:  watchlist,
		ruleStore:  ruleStore,
		alertStore: alertStore,
		batcher:    batcher,
		session:    NewSessionScorer(),
		notifier:   notifier,
		logger:     logger.With(slog.String("component", "processor")),
	}
	p.cache.Store(&caches{
		facts:     map[string]domain.WalletFacts{},
		watchlist: map[string][]domain.WatchlistEntry{},
	})
	return p
}

// Subscribe registers a downstream consumer of the enriched stream. Must be
// called before Run; consumers are invoked inline on the stream's goroutine.
func (p *Processor) Subscribe(fn func(domain.Trade)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Observed returns the cumulative count of processed trades.
func (p *Processor) Observed() uint64 { return p.observed.Load() }

// Process enriches and classifies one trade. Significant trades (whale,
// watchlist, insider suspect) are staged for persistence and matched against
// the alert rules; everything else is observed and dropped.
func (p *Processor) Process(ctx context.Context, t domain.Trade) {
	p.observed.Add(1)
	c := p.cache.Load()

	if facts, known := c.facts[t.Trader]; known {
		t.TraderScore = facts.InsiderScore
		t.TraderSource = facts.Source
	} else {
		score, _ := p.session.Observe(t)
		t.TraderScore = score
		t.TraderSource = "session"
	}

	t.IsWhale = t.USDValue >= p.cfg.WhaleThresholdUSD
	_, t.IsWatchlist = c.watchlist[t.Trader]
	t.IsInsiderSuspect = t.TraderScore >= p.cfg.InsiderSuspectMin
	t.ProcessingLatencyMs = time.Since(t.ExecutedAt).Milliseconds()

	if t.IsWhale || t.IsWatchlist || t.IsInsiderSuspect {
		p.batcher.Enqueue(t)
		p.fireAlerts(ctx, t, c)
	}

	p.mu.RLock()
	subs := p.subscribers
	p.mu.RUnlock()
	for _, fn := range subs {
		fn(t)
	}
}

func (p *Processor) fireAlerts(ctx context.Context, t domain.Trade, c *caches) {
	for _, alert := range evaluateRules(t, c.rules, c.watchlist) {
		if err := p.alertStore.Insert(ctx, alert); err != nil {
			p.logger.ErrorContext(ctx, "insert alert failed",
				slog.String("rule_type", string(alert.RuleType)),
				slog.String("error", err.Error()),
			)
		}
	}

	if t.IsWhale && p.notifier != nil {
		if err := p.notifier.WhaleTrade(ctx, t); err != nil {
			p.logger.WarnContext(ctx, "whale notification failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

// Run refreshes the wallet-facts, watchlist and rule caches periodically
// until ctx is cancelled. The first refresh happens before the ticker starts
// so the hot path never runs against empty caches longer than necessary.
func (p *Processor) Run(ctx context.Context) error {
	if err := p.refresh(ctx); err != nil {
		p.logger.WarnContext(ctx, "initial cache refresh failed",
			slog.String("error", err.Error()),
		)
	}

	ticker := time.NewTicker(p.cfg.CacheRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.refresh(ctx); err != nil {
				p.logger.WarnContext(ctx, "cache refresh failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// refresh rebuilds the cache snapshot and publishes it atomically.
func (p *Processor) refresh(ctx context.Context) error {
	facts := make(map[string]domain.WalletFacts)
	const pageSize = 1000
	for offset := 0; ; offset += pageSize {
		page, err := p.wallets.ListPage(ctx, domain.ListOpts{Limit: pageSize, Offset: offset})
		if err != nil {
			return err
		}
		for _, w := range page {
			facts[w.Address] = domain.WalletFacts{
				Address:        w.Address,
				Source:         w.Source,
				Username:       w.Username,
				PortfolioValue: w.PortfolioValue,
				CopyScore:      w.CopyScore,
				InsiderScore:   w.InsiderScore,
				RedFlags:       w.RedFlags,
			}
			p.session.Forget(w.Address)
		}
		if len(page) < pageSize {
			break
		}
	}

	entries, err := p.watchlist.List(ctx)
	if err != nil {
		return err
	}
	watch := make(map[string][]domain.WatchlistEntry, len(entries))
	for _, e := range entries {
		watch[e.Address] = append(watch[e.Address], e)
	}

	rules, err := p.ruleStore.ListEnabled(ctx)
	if err != nil {
		return err
	}

	p.cache.Store(&caches{facts: facts, watchlist: watch, rules: rules})
	return nil
}
