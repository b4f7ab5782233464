package domain

import "time"

// PeriodMetrics holds the per-window trading metrics derived from a wallet's
// resolved positions. Percentages are 0-100.
type PeriodMetrics struct {
	PnL         float64
	ROI         float64
	WinRate     float64
	Volume      float64
	TradeCount  int
	Wins        int
	Losses      int
	MaxDrawdown float64
}

// BehaviorMetrics captures trading-style features used by the batch funnel
// classifier. Ratios and concentrations are in [0,1].
type BehaviorMetrics struct {
	TradeFrequency        float64 // trades per day over the analysed history
	NightTradeRatio       float64 // share of trades placed 02:00-06:59 UTC
	TradeTimeVariance     float64 // variance of trade hour-of-day
	PositionSizeVariance  float64
	AvgHoldHours          float64
	MaxDrawdown           float64
	UniqueMarkets         int
	PositionConcentration float64 // largest position / total bought
	AvgEntryPrice         float64 // mean entry probability
	PnLConcentration      float64 // largest win / total positive pnl
	CategoryConcentration float64
}

// Wallet is the denormalised analytics row for one trader address. Discovery
// creates and refreshes it; the scorer, copy trader and funnel read it.
type Wallet struct {
	Address          string // lowercase hex, primary key
	Source           string // "discovery", "funnel", "manual"
	Username         string
	Balance          float64 // cash balance
	PortfolioValue   float64 // open positions + cash
	AccountCreatedAt *time.Time
	Nonce            uint64 // on-chain transaction count at last analysis

	AllTime PeriodMetrics
	Last7d  PeriodMetrics
	Last30d PeriodMetrics

	ProfitFactor30d float64
	CopyScore       int // 0-100 copytrade suitability
	InsiderScore    int // 0-100 last composite insider score
	RedFlags        []string

	Behavior BehaviorMetrics

	MetricsUpdatedAt time.Time
	CreatedAt        time.Time
}

// WalletFacts is the hot-path projection of a Wallet kept in the processor's
// refresh cache. Small on purpose: it is copied per trade.
type WalletFacts struct {
	Address        string
	Source         string
	Username       string
	PortfolioValue float64
	CopyScore      int
	InsiderScore   int
	RedFlags       []string
}

// ProfitabilityStatus classifies a wallet at insider-alert write time.
type ProfitabilityStatus string

const (
	ProfitabilityCopyable     ProfitabilityStatus = "copyable"
	ProfitabilityProfitable   ProfitabilityStatus = "profitable"
	ProfitabilityUnprofitable ProfitabilityStatus = "unprofitable"
	ProfitabilityPending      ProfitabilityStatus = "pending"
	ProfitabilityUnknown      ProfitabilityStatus = "unknown"
)
