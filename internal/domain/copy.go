package domain

import "time"

// CopyStatus is the outcome of one copy-trade evaluation.
type CopyStatus string

const (
	CopyStatusCopied   CopyStatus = "copied"
	CopyStatusRejected CopyStatus = "rejected"
	CopyStatusFailed   CopyStatus = "failed"
)

// CopyTradeLog audits every copy-trade decision, copied or not.
type CopyTradeLog struct {
	ID              int64
	SourceTrader    string
	SourceTradeID   string
	OurOrderID      string
	SizeUSD         float64
	Shares          float64
	Price           float64
	Status          CopyStatus
	RejectionReason string
	CreatedAt       time.Time
}

// Cursor is a named monotonically increasing position into the live_trades
// sequence, persisted so independent consumers survive restarts.
type Cursor struct {
	Name      string
	Position  int64
	UpdatedAt time.Time
}
