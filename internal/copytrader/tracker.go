package copytrader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// PositionTracker keeps our own open positions keyed by token id, persisting
// every mutation so a restart resumes with the same book.
type PositionTracker struct {
	store  domain.UserPositionStore
	logger *slog.Logger

	mu        sync.Mutex
	positions map[string]domain.TrackedPosition
}

// NewPositionTracker creates an empty tracker backed by the given store.
func NewPositionTracker(store domain.UserPositionStore, logger *slog.Logger) *PositionTracker {
	return &PositionTracker{
		store:     store,
		logger:    logger.With(slog.String("component", "position_tracker")),
		positions: make(map[string]domain.TrackedPosition),
	}
}

// Load restores the persisted book.
func (t *PositionTracker) Load(ctx context.Context) error {
	persisted, err := t.store.List(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	for _, p := range persisted {
		t.positions[p.TokenID] = p
	}
	t.mu.Unlock()

	t.logger.InfoContext(ctx, "positions restored", slog.Int("count", len(persisted)))
	return nil
}

// ApplyFill folds one of our fills into the book. Same-side fills grow the
// position and re-average the price; opposite-side fills close it partially
// or fully. Returns the realised pnl of any closed portion and the cost
// basis it released, which is non-zero even for a flat close.
func (t *PositionTracker) ApplyFill(ctx context.Context, tokenID, conditionID string, side domain.TradeSide, shares, price float64) (float64, float64) {
	now := time.Now().UTC()

	t.mu.Lock()
	pos, exists := t.positions[tokenID]

	var realized, closedUSD float64
	switch {
	case !exists:
		pos = domain.TrackedPosition{
			TokenID:     tokenID,
			ConditionID: conditionID,
			Side:        side,
			Size:        shares,
			AvgPrice:    price,
			OpenedAt:    now,
		}

	case pos.Side == side:
		total := pos.Size + shares
		pos.AvgPrice = (pos.AvgPrice*pos.Size + price*shares) / total
		pos.Size = total

	default:
		closed := shares
		if closed > pos.Size {
			closed = pos.Size
		}
		realized = (price - pos.AvgPrice) * closed
		if pos.Side == domain.TradeSideSell {
			realized = -realized
		}
		closedUSD = pos.AvgPrice * closed
		pos.Size -= closed
	}

	pos.CurrentPrice = price
	pos.UpdatedAt = now

	fullyClosed := exists && pos.Size <= 0
	if fullyClosed {
		delete(t.positions, tokenID)
	} else {
		t.positions[tokenID] = pos
	}
	t.mu.Unlock()

	if fullyClosed {
		if err := t.store.Delete(ctx, tokenID); err != nil {
			t.logger.ErrorContext(ctx, "position delete failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()),
			)
		}
	} else {
		if err := t.store.Upsert(ctx, pos); err != nil {
			t.logger.ErrorContext(ctx, "position persist failed",
				slog.String("token_id", tokenID),
				slog.String("error", err.Error()),
			)
		}
	}
	return realized, closedUSD
}

// UpdatePrices marks positions to the given quotes in one pass and persists
// the touched rows.
func (t *PositionTracker) UpdatePrices(ctx context.Context, quotes map[string]float64) {
	now := time.Now().UTC()

	t.mu.Lock()
	var touched []domain.TrackedPosition
	for tokenID, price := range quotes {
		pos, ok := t.positions[tokenID]
		if !ok {
			continue
		}
		pos.CurrentPrice = price
		pos.UpdatedAt = now
		t.positions[tokenID] = pos
		touched = append(touched, pos)
	}
	t.mu.Unlock()

	for _, pos := range touched {
		if err := t.store.Upsert(ctx, pos); err != nil {
			t.logger.ErrorContext(ctx, "position persist failed",
				slog.String("token_id", pos.TokenID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Positions returns a snapshot of the open book.
func (t *PositionTracker) Positions() []domain.TrackedPosition {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.TrackedPosition, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, p)
	}
	return out
}

// UnrealizedPnL sums the marked pnl across the open book.
func (t *PositionTracker) UnrealizedPnL() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total float64
	for _, p := range t.positions {
		total += p.UnrealizedPnL()
	}
	return total
}
