package polymarket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polysight/internal/domain"
)

func TestFlexTime_UnmarshalJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want time.Time
	}{
		{"unix seconds", `1755648000`, time.Unix(1755648000, 0).UTC()},
		{"unix millis", `1755648000123`, time.UnixMilli(1755648000123).UTC()},
		{"seconds as string", `"1755648000"`, time.Unix(1755648000, 0).UTC()},
		{"millis as string", `"1755648000123"`, time.UnixMilli(1755648000123).UTC()},
		{"rfc3339", `"2026-08-20T00:00:00Z"`, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var f FlexTime
			require.NoError(t, json.Unmarshal([]byte(tc.in), &f))
			assert.True(t, f.Time.Equal(tc.want), "got %v want %v", f.Time, tc.want)
		})
	}
}

func TestFlexTime_NullAndInvalid(t *testing.T) {
	var f FlexTime
	require.NoError(t, json.Unmarshal([]byte(`null`), &f))
	assert.True(t, f.Time.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"not a time"`), &f))
}

func TestTradeMessage_ToDomain(t *testing.T) {
	msg := TradeMessage{
		ID:          "t1",
		Asset:       "tok1",
		ConditionID: "c1",
		Slug:        "will-it-rain",
		Side:        "buy",
		Outcome:     "Yes",
		Size:        100,
		Price:       0.42,
		ProxyWallet: " 0xAbC123 ",
		Timestamp:   FlexTime{Time: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)},
	}
	received := time.Date(2026, 8, 20, 12, 0, 1, 0, time.UTC)

	trade, ok := msg.ToDomain(received)
	require.True(t, ok)
	assert.Equal(t, "0xabc123", trade.Trader) // lowercased and trimmed
	assert.Equal(t, domain.TradeSideBuy, trade.Side)
	assert.InDelta(t, 42, trade.USDValue, 1e-9)
	assert.Equal(t, msg.Timestamp.Time, trade.ExecutedAt)
	assert.Equal(t, received, trade.ReceivedAt)
}

func TestTradeMessage_ToDomain_NoTrader(t *testing.T) {
	msg := TradeMessage{ID: "t1"}
	_, ok := msg.ToDomain(time.Now())
	assert.False(t, ok)
}

func TestTradeMessage_ToDomain_SynthesisedID(t *testing.T) {
	ts := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	msg := TradeMessage{ProxyWallet: "0xabc", Timestamp: FlexTime{Time: ts}}

	trade, ok := msg.ToDomain(time.Now())
	require.True(t, ok)
	assert.NotEmpty(t, trade.TradeID)
	assert.Contains(t, trade.TradeID, "0xabc")
}

func TestTradeMessage_ToDomain_MissingTimestamp(t *testing.T) {
	received := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	msg := TradeMessage{ProxyWallet: "0xabc"}

	trade, ok := msg.ToDomain(received)
	require.True(t, ok)
	assert.Equal(t, received, trade.ExecutedAt)
}

func TestDecodeOneOrMany(t *testing.T) {
	one, err := decodeOneOrMany[TradeMessage]([]byte(`{"id":"a"}`))
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "a", one[0].ID)

	many, err := decodeOneOrMany[TradeMessage]([]byte(`[{"id":"a"},{"id":"b"}]`))
	require.NoError(t, err)
	assert.Len(t, many, 2)

	empty, err := decodeOneOrMany[TradeMessage]([]byte(`null`))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = decodeOneOrMany[TradeMessage]([]byte(`garbage`))
	assert.Error(t, err)
}

func TestAPIOrderResult_ToDomain(t *testing.T) {
	res := APIOrderResult{Success: true, OrderID: "o1", Status: "live"}
	order := res.ToDomain()
	assert.Equal(t, domain.OrderStatus("LIVE"), order.Status)

	// Missing status defaults by success.
	order = (&APIOrderResult{Success: true, OrderID: "o1"}).ToDomain()
	assert.Equal(t, domain.OrderStatusOpen, order.Status)

	order = (&APIOrderResult{Success: false, ErrorMsg: "rejected"}).ToDomain()
	assert.Equal(t, domain.OrderStatusFailed, order.Status)
	assert.Equal(t, "rejected", order.Message)
}

func TestAPIOrder_ToDomain(t *testing.T) {
	o := APIOrder{
		ID:           "o1",
		AssetID:      "tok1",
		Market:       "c1",
		Side:         "buy",
		OriginalSize: "100.5",
		SizeMatched:  "40",
		Price:        "0.42",
		Status:       "live",
		OrderType:    "gtc",
	}

	order := o.ToDomain()
	assert.Equal(t, domain.OrderStatusOpen, order.Status) // LIVE maps to OPEN
	assert.Equal(t, domain.OrderTypeGTC, order.Type)
	assert.InDelta(t, 100.5, order.Size, 1e-9)
	assert.InDelta(t, 40, order.FilledSize, 1e-9)
	assert.InDelta(t, 0.42, order.Price, 1e-9)

	o.Status = "matched"
	assert.Equal(t, domain.OrderStatusFilled, o.ToDomain().Status)

	// Unparseable decimals map to zero rather than failing.
	o.Price = "n/a"
	assert.Zero(t, o.ToDomain().Price)
}

func TestAPIBook_BestBidAsk(t *testing.T) {
	book := APIBook{
		Bids: []BookLevel{{Price: "0.30"}, {Price: "0.35"}, {Price: "0.40"}}, // ascending
		Asks: []BookLevel{{Price: "0.60"}, {Price: "0.50"}, {Price: "0.45"}}, // descending
	}

	bid, ask := book.BestBidAsk()
	assert.InDelta(t, 0.40, bid, 1e-9)
	assert.InDelta(t, 0.45, ask, 1e-9)

	empty := APIBook{}
	bid, ask = empty.BestBidAsk()
	assert.Zero(t, bid)
	assert.Zero(t, ask)
}

func TestAPIProfile_Username(t *testing.T) {
	assert.Equal(t, "alice", (&APIProfile{Name: "alice", Pseudonym: "anon"}).Username())
	assert.Equal(t, "anon", (&APIProfile{Pseudonym: "anon"}).Username())
}
