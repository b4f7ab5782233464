package polymarket

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polysight/internal/domain"
)

type staticBooks struct {
	bid, ask float64
	err      error
}

func (b *staticBooks) BestBidAsk(context.Context, string) (float64, float64, error) {
	return b.bid, b.ask, b.err
}

func TestPaperClob_CrossingBuyFills(t *testing.T) {
	p := NewPaperClob(&staticBooks{bid: 0.40, ask: 0.45})

	res, err := p.PostOrder(context.Background(), domain.Order{
		TokenID: "tok1",
		Side:    domain.TradeSideBuy,
		Size:    100,
		Price:   0.50,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.OrderStatusFilled, res.Status)

	order, err := p.GetOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.InDelta(t, 100, order.FilledSize, 1e-9)
	assert.True(t, order.Paper)
}

func TestPaperClob_PassiveOrderRests(t *testing.T) {
	p := NewPaperClob(&staticBooks{bid: 0.40, ask: 0.45})

	res, err := p.PostOrder(context.Background(), domain.Order{
		TokenID: "tok1",
		Side:    domain.TradeSideBuy,
		Size:    100,
		Price:   0.30,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusOpen, res.Status)

	open, err := p.GetOpenOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestPaperClob_CrossingSellFills(t *testing.T) {
	p := NewPaperClob(&staticBooks{bid: 0.40, ask: 0.45})

	res, err := p.PostOrder(context.Background(), domain.Order{
		TokenID: "tok1",
		Side:    domain.TradeSideSell,
		Size:    50,
		Price:   0.35,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, res.Status)
}

func TestPaperClob_BookFailureLeavesOrderOpen(t *testing.T) {
	p := NewPaperClob(&staticBooks{err: errors.New("book unavailable")})

	res, err := p.PostOrder(context.Background(), domain.Order{
		TokenID: "tok1",
		Side:    domain.TradeSideBuy,
		Size:    10,
		Price:   0.99,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusOpen, res.Status)
}

func TestPaperClob_NoBookSourceRestsEverything(t *testing.T) {
	p := NewPaperClob(nil)

	res, err := p.PostOrder(context.Background(), domain.Order{
		TokenID: "tok1",
		Side:    domain.TradeSideBuy,
		Size:    10,
		Price:   0.99,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusOpen, res.Status)
}

func TestPaperClob_CancelOrder(t *testing.T) {
	p := NewPaperClob(&staticBooks{bid: 0.40, ask: 0.45})

	res, err := p.PostOrder(context.Background(), domain.Order{
		TokenID: "tok1",
		Side:    domain.TradeSideBuy,
		Size:    10,
		Price:   0.30,
	})
	require.NoError(t, err)

	require.NoError(t, p.CancelOrder(context.Background(), res.OrderID))

	order, err := p.GetOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)

	// A cancelled order cannot be cancelled again.
	assert.Error(t, p.CancelOrder(context.Background(), res.OrderID))
}

func TestPaperClob_CancelUnknownOrder(t *testing.T) {
	p := NewPaperClob(nil)
	err := p.CancelOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPaperClob_Stats(t *testing.T) {
	p := NewPaperClob(&staticBooks{bid: 0.40, ask: 0.45})

	p.PostOrder(context.Background(), domain.Order{TokenID: "tok1", Side: domain.TradeSideBuy, Size: 100, Price: 0.50}) // fills
	p.PostOrder(context.Background(), domain.Order{TokenID: "tok1", Side: domain.TradeSideBuy, Size: 100, Price: 0.30}) // rests

	stats := p.Stats()
	assert.Equal(t, 2, stats.OrdersPlaced)
	assert.Equal(t, 1, stats.OpenOrders)
	assert.InDelta(t, 80, stats.TotalVolumeUSD, 1e-9) // 100*0.50 + 100*0.30
}
