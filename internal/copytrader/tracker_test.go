package copytrader

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polysight/internal/domain"
)

type fakePositionStore struct {
	mu        sync.Mutex
	positions map[string]domain.TrackedPosition
}

func newFakePositionStore() *fakePositionStore {
	return &fakePositionStore{positions: make(map[string]domain.TrackedPosition)}
}

func (f *fakePositionStore) Upsert(_ context.Context, pos domain.TrackedPosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[pos.TokenID] = pos
	return nil
}

func (f *fakePositionStore) Delete(_ context.Context, tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.positions, tokenID)
	return nil
}

func (f *fakePositionStore) List(context.Context) ([]domain.TrackedPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TrackedPosition, 0, len(f.positions))
	for _, p := range f.positions {
		out = append(out, p)
	}
	return out, nil
}

func TestApplyFill_OpensPosition(t *testing.T) {
	ctx := context.Background()
	store := newFakePositionStore()
	tracker := NewPositionTracker(store, discardLogger())

	realized, closedUSD := tracker.ApplyFill(ctx, "tok1", "c1", domain.TradeSideBuy, 10, 0.50)
	assert.Zero(t, realized)
	assert.Zero(t, closedUSD)

	positions := tracker.Positions()
	require.Len(t, positions, 1)
	assert.InDelta(t, 10, positions[0].Size, 1e-9)
	assert.InDelta(t, 0.50, positions[0].AvgPrice, 1e-9)

	// Persisted too.
	assert.Contains(t, store.positions, "tok1")
}

func TestApplyFill_SameSideReaverages(t *testing.T) {
	ctx := context.Background()
	tracker := NewPositionTracker(newFakePositionStore(), discardLogger())

	tracker.ApplyFill(ctx, "tok1", "c1", domain.TradeSideBuy, 10, 0.50)
	realized, closedUSD := tracker.ApplyFill(ctx, "tok1", "c1", domain.TradeSideBuy, 10, 0.70)
	assert.Zero(t, realized)
	assert.Zero(t, closedUSD)

	positions := tracker.Positions()
	require.Len(t, positions, 1)
	assert.InDelta(t, 20, positions[0].Size, 1e-9)
	assert.InDelta(t, 0.60, positions[0].AvgPrice, 1e-9)
}

func TestApplyFill_PartialClose(t *testing.T) {
	ctx := context.Background()
	tracker := NewPositionTracker(newFakePositionStore(), discardLogger())

	tracker.ApplyFill(ctx, "tok1", "c1", domain.TradeSideBuy, 20, 0.60)
	realized, closedUSD := tracker.ApplyFill(ctx, "tok1", "c1", domain.TradeSideSell, 5, 0.80)

	assert.InDelta(t, 1.0, realized, 1e-9)      // (0.80 - 0.60) * 5
	assert.InDelta(t, 3.0, closedUSD, 1e-9) // 0.60 * 5 cost basis released

	positions := tracker.Positions()
	require.Len(t, positions, 1)
	assert.InDelta(t, 15, positions[0].Size, 1e-9)
}

func TestApplyFill_FullCloseDeletes(t *testing.T) {
	ctx := context.Background()
	store := newFakePositionStore()
	tracker := NewPositionTracker(store, discardLogger())

	tracker.ApplyFill(ctx, "tok1", "c1", domain.TradeSideBuy, 10, 0.40)
	// Oversized opposite fill closes the whole position, never flips it.
	realized, closedUSD := tracker.ApplyFill(ctx, "tok1", "c1", domain.TradeSideSell, 25, 0.30)

	assert.InDelta(t, -1.0, realized, 1e-9) // (0.30 - 0.40) * 10
	assert.InDelta(t, 4.0, closedUSD, 1e-9)
	assert.Empty(t, tracker.Positions())
	assert.NotContains(t, store.positions, "tok1")
}

func TestApplyFill_FlatCloseStillReleasesBasis(t *testing.T) {
	ctx := context.Background()
	tracker := NewPositionTracker(newFakePositionStore(), discardLogger())

	tracker.ApplyFill(ctx, "tok1", "c1", domain.TradeSideBuy, 10, 0.50)
	// Closing at the entry price realises nothing but still frees the stake.
	realized, closedUSD := tracker.ApplyFill(ctx, "tok1", "c1", domain.TradeSideSell, 10, 0.50)

	assert.Zero(t, realized)
	assert.InDelta(t, 5.0, closedUSD, 1e-9) // 0.50 * 10
	assert.Empty(t, tracker.Positions())
}

func TestApplyFill_ShortSideRealizedSignFlips(t *testing.T) {
	ctx := context.Background()
	tracker := NewPositionTracker(newFakePositionStore(), discardLogger())

	tracker.ApplyFill(ctx, "tok1", "c1", domain.TradeSideSell, 10, 0.70)
	realized, _ := tracker.ApplyFill(ctx, "tok1", "c1", domain.TradeSideBuy, 10, 0.50)

	// Sold at 0.70, bought back at 0.50: a gain.
	assert.InDelta(t, 2.0, realized, 1e-9)
}

func TestLoad_RestoresBook(t *testing.T) {
	ctx := context.Background()
	store := newFakePositionStore()
	store.positions["tok1"] = domain.TrackedPosition{TokenID: "tok1", Size: 5, AvgPrice: 0.5, Side: domain.TradeSideBuy}

	tracker := NewPositionTracker(store, discardLogger())
	require.NoError(t, tracker.Load(ctx))
	assert.Len(t, tracker.Positions(), 1)
}

func TestUpdatePricesAndUnrealizedPnL(t *testing.T) {
	ctx := context.Background()
	store := newFakePositionStore()
	tracker := NewPositionTracker(store, discardLogger())

	tracker.ApplyFill(ctx, "tok1", "c1", domain.TradeSideBuy, 10, 0.50)
	tracker.UpdatePrices(ctx, map[string]float64{"tok1": 0.65, "unknown": 0.10})

	assert.InDelta(t, 1.5, tracker.UnrealizedPnL(), 1e-9) // (0.65 - 0.50) * 10
	assert.InDelta(t, 0.65, store.positions["tok1"].CurrentPrice, 1e-9)
}
