// Package polymarket contains the venue clients: the live trade feed, the
// Data API fetchers, the CLOB order clients, and the Polygon RPC helper.
package polymarket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// FlexTime decodes the venue's polymorphic timestamps: Unix seconds, Unix
// milliseconds, numeric strings of either, or RFC 3339 strings.
type FlexTime struct {
	time.Time
}

// msEpochThreshold separates second from millisecond epochs: any value above
// it cannot be a plausible second count.
const msEpochThreshold = 1e12

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			f.Time = epochToTime(n)
			return nil
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("polymarket: parse timestamp %q: %w", s, err)
		}
		f.Time = t.UTC()
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	f.Time = epochToTime(n)
	return nil
}

func epochToTime(n float64) time.Time {
	if n > msEpochThreshold {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec := int64(n)
	frac := n - float64(sec)
	return time.Unix(sec, int64(frac*1e9)).UTC()
}

// TradeMessage is one trade event on the live feed.
type TradeMessage struct {
	ID           string   `json:"id"`
	Asset        string   `json:"asset"`
	ConditionID  string   `json:"conditionId"`
	Slug         string   `json:"slug"`
	EventSlug    string   `json:"eventSlug"`
	Category     string   `json:"category"`
	Side         string   `json:"side"`
	Outcome      string   `json:"outcome"`
	OutcomeIndex int      `json:"outcomeIndex"`
	Size         float64  `json:"size"`
	Price        float64  `json:"price"`
	Timestamp    FlexTime `json:"timestamp"`
	ProxyWallet  string   `json:"proxyWallet"`
	TxHash       string   `json:"transactionHash"`
}

// ToDomain maps the wire trade to the domain type. It returns false when the
// message has no trader address, which the caller must drop.
func (m *TradeMessage) ToDomain(receivedAt time.Time) (domain.Trade, bool) {
	trader := strings.ToLower(strings.TrimSpace(m.ProxyWallet))
	if trader == "" {
		return domain.Trade{}, false
	}

	id := m.ID
	if id == "" {
		// The venue occasionally omits ids; synthesise a stable one.
		id = fmt.Sprintf("%s-%d", trader, m.Timestamp.UnixMilli())
	}

	executed := m.Timestamp.Time
	if executed.IsZero() {
		executed = receivedAt
	}

	return domain.Trade{
		TradeID:      id,
		Trader:       trader,
		ConditionID:  m.ConditionID,
		AssetID:      m.Asset,
		MarketSlug:   m.Slug,
		EventSlug:    m.EventSlug,
		Category:     m.Category,
		Side:         domain.TradeSide(strings.ToUpper(m.Side)),
		Outcome:      m.Outcome,
		OutcomeIndex: m.OutcomeIndex,
		Size:         m.Size,
		Price:        m.Price,
		USDValue:     m.Size * m.Price,
		ExecutedAt:   executed,
		ReceivedAt:   receivedAt,
		TxHash:       m.TxHash,
	}, true
}

// decodeOneOrMany decodes a JSON payload that may be either a single object
// or an array of objects into a slice.
func decodeOneOrMany[T any](data []byte) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return nil, err
		}
		return many, nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}

// ---------------------------------------------------------------------------
// Data API wire types
// ---------------------------------------------------------------------------

// APIPosition is an open position row from the Data API.
type APIPosition struct {
	ProxyWallet  string  `json:"proxyWallet"`
	ConditionID  string  `json:"conditionId"`
	Outcome      string  `json:"outcome"`
	OutcomeIndex int     `json:"outcomeIndex"`
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avgPrice"`
	InitialValue float64 `json:"initialValue"`
	CurrentValue float64 `json:"currentValue"`
	CashPnL      float64 `json:"cashPnl"`
	Title        string  `json:"title"`
}

// ToDomain maps the wire position to the domain type.
func (p *APIPosition) ToDomain(address string) domain.OpenPosition {
	return domain.OpenPosition{
		Address:      address,
		ConditionID:  p.ConditionID,
		Outcome:      p.Outcome,
		OutcomeIndex: p.OutcomeIndex,
		Size:         p.Size,
		AvgPrice:     p.AvgPrice,
		InitialValue: p.InitialValue,
		CurrentValue: p.CurrentValue,
		CashPnL:      p.CashPnL,
		Title:        p.Title,
	}
}

// APIClosedPosition is a resolved position row from the Data API.
type APIClosedPosition struct {
	ConditionID string   `json:"conditionId"`
	Outcome     string   `json:"outcome"`
	TotalBought float64  `json:"totalBought"`
	AvgPrice    float64  `json:"avgPrice"`
	FinalPrice  float64  `json:"curPrice"`
	RealizedPnL float64  `json:"realizedPnl"`
	ResolvedAt  FlexTime `json:"endDate"`
	Category    string   `json:"category"`
}

// ToDomain maps the wire closed position to the domain type.
func (p *APIClosedPosition) ToDomain(address string) domain.ClosedPosition {
	return domain.ClosedPosition{
		Address:     address,
		ConditionID: p.ConditionID,
		Outcome:     p.Outcome,
		TotalBought: p.TotalBought,
		AvgPrice:    p.AvgPrice,
		FinalPrice:  p.FinalPrice,
		RealizedPnL: p.RealizedPnL,
		ResolvedAt:  p.ResolvedAt.Time,
		Category:    p.Category,
	}
}

// APIValue is the portfolio value response.
type APIValue struct {
	User  string  `json:"user"`
	Value float64 `json:"value"`
}

// APIProfile is the user profile response.
type APIProfile struct {
	Name      string   `json:"name"`
	Pseudonym string   `json:"pseudonym"`
	CreatedAt FlexTime `json:"createdAt"`
}

// Username returns the best available display name.
func (p *APIProfile) Username() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Pseudonym
}

// APIActivity is one activity row (trades, splits, redeems).
type APIActivity struct {
	Type        string   `json:"type"`
	ConditionID string   `json:"conditionId"`
	Side        string   `json:"side"`
	Size        float64  `json:"size"`
	Price       float64  `json:"price"`
	USDCSize    float64  `json:"usdcSize"`
	Timestamp   FlexTime `json:"timestamp"`
}

// APIMarket is the market metadata subset the scorer needs.
type APIMarket struct {
	ConditionID string  `json:"conditionId"`
	Slug        string  `json:"slug"`
	Category    string  `json:"category"`
	Volume24h   float64 `json:"volume24hr"`
}

// ---------------------------------------------------------------------------
// CLOB wire types
// ---------------------------------------------------------------------------

// APIOrderResult is the CLOB response to an order placement.
type APIOrderResult struct {
	Success  bool   `json:"success"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
	ErrorMsg string `json:"errorMsg"`
}

// ToDomain maps the CLOB order result to the domain type.
func (r *APIOrderResult) ToDomain() domain.OrderResult {
	status := domain.OrderStatus(strings.ToUpper(r.Status))
	if status == "" {
		if r.Success {
			status = domain.OrderStatusOpen
		} else {
			status = domain.OrderStatusFailed
		}
	}
	return domain.OrderResult{
		Success: r.Success,
		OrderID: r.OrderID,
		Status:  status,
		Message: r.ErrorMsg,
	}
}

// APIOrder is an order row returned by the CLOB.
type APIOrder struct {
	ID           string   `json:"id"`
	AssetID      string   `json:"asset_id"`
	Market       string   `json:"market"`
	Side         string   `json:"side"`
	OriginalSize string   `json:"original_size"`
	SizeMatched  string   `json:"size_matched"`
	Price        string   `json:"price"`
	Status       string   `json:"status"`
	OrderType    string   `json:"order_type"`
	CreatedAt    FlexTime `json:"created_at"`
}

// ToDomain maps the CLOB order to the domain type. String-encoded decimals
// that fail to parse map to zero.
func (o *APIOrder) ToDomain() domain.Order {
	parse := func(s string) float64 {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	status := domain.OrderStatus(strings.ToUpper(o.Status))
	switch status {
	case "LIVE":
		status = domain.OrderStatusOpen
	case "MATCHED":
		status = domain.OrderStatusFilled
	}
	return domain.Order{
		ID:          o.ID,
		TokenID:     o.AssetID,
		ConditionID: o.Market,
		Side:        domain.TradeSide(strings.ToUpper(o.Side)),
		Size:        parse(o.OriginalSize),
		Price:       parse(o.Price),
		FilledSize:  parse(o.SizeMatched),
		Status:      status,
		Type:        domain.OrderType(strings.ToUpper(o.OrderType)),
		CreatedAt:   o.CreatedAt.Time,
	}
}

// BookLevel is one price level of an order book side.
type BookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is the CLOB order book snapshot for one token.
type APIBook struct {
	AssetID string      `json:"asset_id"`
	Bids    []BookLevel `json:"bids"`
	Asks    []BookLevel `json:"asks"`
}

// BestBidAsk returns the top of book. Zero values mean the side is empty.
// The CLOB returns bids ascending and asks descending, so the best level of
// each side is the last element.
func (b *APIBook) BestBidAsk() (bid, ask float64) {
	if n := len(b.Bids); n > 0 {
		bid, _ = strconv.ParseFloat(b.Bids[n-1].Price, 64)
	}
	if n := len(b.Asks); n > 0 {
		ask, _ = strconv.ParseFloat(b.Asks[n-1].Price, 64)
	}
	return bid, ask
}
