package processor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polysight/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTradeStore struct {
	mu      sync.Mutex
	batches [][]domain.Trade
	fail    bool
}

func (f *fakeTradeStore) UpsertBatch(_ context.Context, trades []domain.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return context.DeadlineExceeded
	}
	batch := make([]domain.Trade, len(trades))
	copy(batch, trades)
	f.batches = append(f.batches, batch)
	return nil
}
func (f *fakeTradeStore) MaxID(context.Context) (int64, error) { return 0, nil }
func (f *fakeTradeStore) ListAfterID(context.Context, int64, int) ([]domain.Trade, error) {
	return nil, nil
}
func (f *fakeTradeStore) ListBefore(context.Context, time.Time) ([]domain.Trade, error) {
	return nil, nil
}
func (f *fakeTradeStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (f *fakeTradeStore) flushed() [][]domain.Trade {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

func TestDedupeByTradeID_LastObservationWins(t *testing.T) {
	batch := []domain.Trade{
		{TradeID: "a", USDValue: 1},
		{TradeID: "b", USDValue: 2},
		{TradeID: "a", USDValue: 3},
	}

	deduped := dedupeByTradeID(batch)
	require.Len(t, deduped, 2)
	assert.Equal(t, "a", deduped[0].TradeID)
	assert.InDelta(t, 3, deduped[0].USDValue, 1e-9) // last observation kept
	assert.Equal(t, "b", deduped[1].TradeID)
}

func TestBatcher_SizeTriggeredFlush(t *testing.T) {
	store := &fakeTradeStore{}
	b := NewBatcher(BatcherConfig{BatchSize: 2, BatchTimeout: time.Hour, QueueSize: 10}, store, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	b.Enqueue(domain.Trade{TradeID: "a"})
	b.Enqueue(domain.Trade{TradeID: "b"})

	require.Eventually(t, func() bool {
		return len(store.flushed()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Len(t, store.flushed()[0], 2)
	assert.Equal(t, uint64(2), b.Stored())

	cancel()
	<-done
}

func TestBatcher_TimeoutFlush(t *testing.T) {
	store := &fakeTradeStore{}
	b := NewBatcher(BatcherConfig{BatchSize: 100, BatchTimeout: 20 * time.Millisecond, QueueSize: 10}, store, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	b.Enqueue(domain.Trade{TradeID: "a"})

	require.Eventually(t, func() bool {
		return len(store.flushed()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, store.flushed()[0], 1)

	cancel()
	<-done
}

func TestBatcher_FinalFlushOnShutdown(t *testing.T) {
	store := &fakeTradeStore{}
	b := NewBatcher(BatcherConfig{BatchSize: 100, BatchTimeout: time.Hour, QueueSize: 10}, store, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	b.Enqueue(domain.Trade{TradeID: "a"})

	// Give the run loop a moment to drain the queue into the batch.
	require.Eventually(t, func() bool {
		return len(b.queue) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, store.flushed(), 1)
}

func TestBatcher_FullQueueDrops(t *testing.T) {
	store := &fakeTradeStore{}
	b := NewBatcher(BatcherConfig{BatchSize: 100, BatchTimeout: time.Hour, QueueSize: 2}, store, discardLogger())

	// Run is never started, so the queue fills up.
	b.Enqueue(domain.Trade{TradeID: "a"})
	b.Enqueue(domain.Trade{TradeID: "b"})
	b.Enqueue(domain.Trade{TradeID: "c"})

	assert.Equal(t, uint64(1), b.Dropped())
}

func TestBatcher_FailedFlushDoesNotCount(t *testing.T) {
	store := &fakeTradeStore{fail: true}
	b := NewBatcher(BatcherConfig{BatchSize: 1, BatchTimeout: time.Hour, QueueSize: 10}, store, discardLogger())

	b.flush([]domain.Trade{{TradeID: "a"}})
	assert.Zero(t, b.Stored())
}
