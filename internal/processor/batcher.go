package processor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// BatcherConfig holds the batch writer parameters.
type BatcherConfig struct {
	BatchSize    int           // flush when the batch reaches this size, ~50
	BatchTimeout time.Duration // flush a non-empty batch after this long, ~500ms
	QueueSize    int
}

// Batcher is the single-writer task that drains the trade queue into batched
// store upserts. Before each flush the batch is deduplicated by trade id,
// keeping the last observation.
type Batcher struct {
	cfg    BatcherConfig
	store  domain.TradeStore
	logger *slog.Logger

	queue chan domain.Trade

	stored  atomic.Uint64
	dropped atomic.Uint64
}

// NewBatcher creates a Batcher writing to the given store.
func NewBatcher(cfg BatcherConfig, store domain.TradeStore, logger *slog.Logger) *Batcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 500 * time.Millisecond
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	return &Batcher{
		cfg:    cfg,
		store:  store,
		logger: logger.With(slog.String("component", "batch_writer")),
		queue:  make(chan domain.Trade, cfg.QueueSize),
	}
}

// Enqueue stages a trade for persistence. On a full queue the trade is
// dropped and counted; the stream must never block on the store.
func (b *Batcher) Enqueue(t domain.Trade) {
	select {
	case b.queue <- t:
	default:
		b.dropped.Add(1)
	}
}

// Stored returns the cumulative count of persisted trades.
func (b *Batcher) Stored() uint64 { return b.stored.Load() }

// Dropped returns the cumulative count of trades lost to queue overflow.
func (b *Batcher) Dropped() uint64 { return b.dropped.Load() }

// Run drains the queue until ctx is cancelled, then flushes the remaining
// batch before returning.
func (b *Batcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.BatchTimeout)
	defer ticker.Stop()

	batch := make([]domain.Trade, 0, b.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			b.flush(batch)
			return ctx.Err()

		case t := <-b.queue:
			batch = append(batch, t)
			if len(batch) >= b.cfg.BatchSize {
				b.flush(batch)
				batch = batch[:0]
				ticker.Reset(b.cfg.BatchTimeout)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				b.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

// flush deduplicates and upserts one batch. Uses a background-derived
// context so the final flush still runs during shutdown.
func (b *Batcher) flush(batch []domain.Trade) {
	if len(batch) == 0 {
		return
	}

	deduped := dedupeByTradeID(batch)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := b.store.UpsertBatch(ctx, deduped); err != nil {
		b.logger.Error("batch flush failed",
			slog.Int("size", len(deduped)),
			slog.String("error", err.Error()),
		)
		return
	}
	b.stored.Add(uint64(len(deduped)))
}

// dedupeByTradeID keeps the last observation of each trade id, preserving
// first-seen order.
func dedupeByTradeID(batch []domain.Trade) []domain.Trade {
	last := make(map[string]domain.Trade, len(batch))
	order := make([]string, 0, len(batch))
	for _, t := range batch {
		if _, seen := last[t.TradeID]; !seen {
			order = append(order, t.TradeID)
		}
		last[t.TradeID] = t
	}

	out := make([]domain.Trade, 0, len(order))
	for _, id := range order {
		out = append(out, last[id])
	}
	return out
}
