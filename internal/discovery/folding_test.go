package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polysight/internal/domain"
)

func TestFoldPositions_HedgeCollapsesIntoOneTrade(t *testing.T) {
	resolved := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	closed := []domain.ClosedPosition{
		{ConditionID: "c1", Outcome: "Yes", TotalBought: 1000, AvgPrice: 0.60, RealizedPnL: 400, ResolvedAt: resolved, Category: "politics"},
		{ConditionID: "c1", Outcome: "No", TotalBought: 300, AvgPrice: 0.40, RealizedPnL: -300, ResolvedAt: resolved.Add(-time.Hour), Category: "politics"},
	}

	folded := FoldPositions(nil, closed)
	require.Len(t, folded, 1)

	trade := folded[0]
	assert.Equal(t, "c1", trade.ConditionID)
	assert.Equal(t, 2, trade.Legs)
	assert.InDelta(t, 100, trade.TotalPnL, 1e-9)
	assert.InDelta(t, 1300, trade.TotalBought, 1e-9)
	// Primary leg is the larger one.
	assert.Equal(t, "Yes", trade.Outcome)
	assert.True(t, trade.Resolved)
	assert.Equal(t, resolved, trade.ResolvedAt)
	// Weighted avg price: (0.60*1000 + 0.40*300) / 1300.
	assert.InDelta(t, 0.5538, trade.AvgPrice, 0.001)
}

func TestFoldPositions_SameOutcomeStaysSeparate(t *testing.T) {
	resolved := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	closed := []domain.ClosedPosition{
		{ConditionID: "c1", Outcome: "Yes", TotalBought: 500, RealizedPnL: 100, ResolvedAt: resolved},
		{ConditionID: "c1", Outcome: "Yes", TotalBought: 200, RealizedPnL: -50, ResolvedAt: resolved},
	}

	folded := FoldPositions(nil, closed)
	require.Len(t, folded, 2)
	assert.Equal(t, 1, folded[0].Legs)
	assert.Equal(t, 1, folded[1].Legs)
	assert.InDelta(t, 100, folded[0].TotalPnL, 1e-9)
	assert.InDelta(t, -50, folded[1].TotalPnL, 1e-9)
}

func TestFoldPositions_OpenLegJoinsHedge(t *testing.T) {
	resolved := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	closed := []domain.ClosedPosition{
		{ConditionID: "c1", Outcome: "Yes", TotalBought: 400, RealizedPnL: 200, ResolvedAt: resolved},
	}
	open := []domain.OpenPosition{
		{ConditionID: "c1", Outcome: "No", InitialValue: 100, CashPnL: -20},
	}

	folded := FoldPositions(open, closed)
	require.Len(t, folded, 1)

	trade := folded[0]
	assert.Equal(t, 2, trade.Legs)
	assert.InDelta(t, 180, trade.TotalPnL, 1e-9)
	// Resolved if any leg is.
	assert.True(t, trade.Resolved)
	assert.Equal(t, "Yes", trade.Outcome)
}

func TestFoldPositions_UnresolvedOpenPosition(t *testing.T) {
	open := []domain.OpenPosition{
		{ConditionID: "c2", Outcome: "Yes", InitialValue: 150, CashPnL: 30, AvgPrice: 0.25},
	}

	folded := FoldPositions(open, nil)
	require.Len(t, folded, 1)
	assert.False(t, folded[0].Resolved)
	assert.InDelta(t, 30, folded[0].TotalPnL, 1e-9)
	assert.InDelta(t, 0.25, folded[0].AvgPrice, 1e-9)
}

func TestFoldPositions_PreservesConditionOrder(t *testing.T) {
	resolved := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	closed := []domain.ClosedPosition{
		{ConditionID: "a", Outcome: "Yes", TotalBought: 10, ResolvedAt: resolved},
		{ConditionID: "b", Outcome: "No", TotalBought: 10, ResolvedAt: resolved},
		{ConditionID: "a", Outcome: "Yes", TotalBought: 10, ResolvedAt: resolved},
	}

	folded := FoldPositions(nil, closed)
	require.Len(t, folded, 3)
	assert.Equal(t, "a", folded[0].ConditionID)
	assert.Equal(t, "a", folded[1].ConditionID)
	assert.Equal(t, "b", folded[2].ConditionID)
}
