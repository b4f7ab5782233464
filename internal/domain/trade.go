package domain

import "time"

// TradeSide indicates the taker direction of a fill.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// Trade is one live fill observed on the venue's trade feed, enriched by the
// processor. Rows are upserted by TradeID; ID is the store-assigned sequence
// used by cursor-tailing consumers.
type Trade struct {
	ID           int64
	TradeID      string // venue trade id, unique
	Trader       string // lowercase hex proxy wallet
	ConditionID  string
	AssetID      string
	MarketSlug   string
	EventSlug    string
	Category     string
	Side         TradeSide
	Outcome      string
	OutcomeIndex int
	Size         float64 // shares
	Price        float64 // in [0,1]
	USDValue     float64
	ExecutedAt   time.Time
	ReceivedAt   time.Time
	TxHash       string

	// Enrichment set by the processor.
	IsWhale             bool
	IsWatchlist         bool
	IsInsiderSuspect    bool
	TraderScore         int    // 0-100 heuristic or cached insider score
	TraderSource        string // where the wallet facts came from
	ProcessingLatencyMs int64
}
