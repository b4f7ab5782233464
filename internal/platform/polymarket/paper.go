package polymarket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// PaperStats are the simulator's observability counters.
type PaperStats struct {
	OrdersPlaced    int
	OrdersCancelled int
	TotalVolumeUSD  float64
	OpenOrders      int
}

// PaperClob simulates the CLOB locally. An order crossing the just-fetched
// top of book fills immediately; everything else rests as open. It keeps
// orders in memory only; persistence is the caller's job.
type PaperClob struct {
	books BookSource

	mu     sync.Mutex
	orders map[string]domain.Order
	stats  PaperStats
}

// NewPaperClob creates a paper simulator filling against the given book source.
func NewPaperClob(books BookSource) *PaperClob {
	return &PaperClob{
		books:  books,
		orders: make(map[string]domain.Order),
	}
}

var _ Clob = (*PaperClob)(nil)

// PostOrder simulates placement. A BUY at or above best ask, or a SELL at or
// below best bid, fills in full immediately. A book fetch failure leaves the
// order open rather than failing it.
func (p *PaperClob) PostOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	var bid, ask float64
	if p.books != nil {
		var err error
		bid, ask, err = p.books.BestBidAsk(ctx, order.TokenID)
		if err != nil {
			bid, ask = 0, 0
		}
	}

	filled := false
	switch order.Side {
	case domain.TradeSideBuy:
		filled = ask > 0 && order.Price >= ask
	case domain.TradeSideSell:
		filled = bid > 0 && order.Price <= bid
	}

	order.ID = uuid.New().String()
	order.Paper = true
	order.CreatedAt = time.Now().UTC()
	order.UpdatedAt = order.CreatedAt
	if filled {
		order.Status = domain.OrderStatusFilled
		order.FilledSize = order.Size
	} else {
		order.Status = domain.OrderStatusOpen
	}

	p.mu.Lock()
	p.orders[order.ID] = order
	p.stats.OrdersPlaced++
	p.stats.TotalVolumeUSD += order.Size * order.Price
	if !filled {
		p.stats.OpenOrders++
	}
	p.mu.Unlock()

	return domain.OrderResult{
		Success: true,
		OrderID: order.ID,
		Status:  order.Status,
	}, nil
}

// CancelOrder cancels a resting simulated order.
func (p *PaperClob) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("polymarket/paper: cancel %s: %w", orderID, domain.ErrNotFound)
	}
	if order.Status.Terminal() {
		return fmt.Errorf("polymarket/paper: cancel %s: order is %s", orderID, order.Status)
	}

	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = time.Now().UTC()
	p.orders[orderID] = order
	p.stats.OrdersCancelled++
	p.stats.OpenOrders--
	return nil
}

// GetOrder returns a simulated order by ID.
func (p *PaperClob) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("polymarket/paper: get %s: %w", orderID, domain.ErrNotFound)
	}
	return order, nil
}

// GetOpenOrders returns all resting simulated orders.
func (p *PaperClob) GetOpenOrders(ctx context.Context) ([]domain.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var open []domain.Order
	for _, o := range p.orders {
		if !o.Status.Terminal() {
			open = append(open, o)
		}
	}
	return open, nil
}

// Stats returns a snapshot of the simulator counters.
func (p *PaperClob) Stats() PaperStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
