package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// TradeStore persists the live trade stream. Writes are upserts keyed by
// the venue TradeID; ID ordering is the contract for cursor-tailing readers.
type TradeStore interface {
	UpsertBatch(ctx context.Context, trades []Trade) error
	MaxID(ctx context.Context) (int64, error)
	ListAfterID(ctx context.Context, afterID int64, limit int) ([]Trade, error)
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// WalletStore persists wallet analytics rows.
type WalletStore interface {
	Upsert(ctx context.Context, w Wallet) error
	UpdateInsiderScore(ctx context.Context, address string, score int) error
	Get(ctx context.Context, address string) (Wallet, error)
	ListAddresses(ctx context.Context) ([]string, error)
	ListMetricsAges(ctx context.Context) (map[string]time.Time, error)
	ListPage(ctx context.Context, opts ListOpts) ([]Wallet, error)
	ListQualified(ctx context.Context, minCopyScore int) ([]Wallet, error)
}

// WatchlistStore reads manually curated wallet lists.
type WatchlistStore interface {
	List(ctx context.Context) ([]WatchlistEntry, error)
}

// AlertRuleStore reads alerting rules.
type AlertRuleStore interface {
	ListEnabled(ctx context.Context) ([]AlertRule, error)
}

// TradeAlertStore persists rule matches.
type TradeAlertStore interface {
	Insert(ctx context.Context, alert TradeAlert) error
	DeleteAcknowledgedBefore(ctx context.Context, before time.Time) (int64, error)
}

// InsiderAlertStore persists insider scorer output, one row per trade id.
type InsiderAlertStore interface {
	Upsert(ctx context.Context, alert InsiderAlert) error
	ListBefore(ctx context.Context, before time.Time) ([]InsiderAlert, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// OrderStore persists our own CLOB orders.
type OrderStore interface {
	Create(ctx context.Context, order Order) error
	UpdateStatus(ctx context.Context, id string, status OrderStatus, filledSize float64, errMsg string) error
	GetByID(ctx context.Context, id string) (Order, error)
	ListOpen(ctx context.Context) ([]Order, error)
}

// UserPositionStore persists our copy-trading positions keyed by token id.
type UserPositionStore interface {
	Upsert(ctx context.Context, pos TrackedPosition) error
	Delete(ctx context.Context, tokenID string) error
	List(ctx context.Context) ([]TrackedPosition, error)
}

// CopyLogStore appends copy-trade audit rows.
type CopyLogStore interface {
	Insert(ctx context.Context, entry CopyTradeLog) error
}

// CursorStore persists consumer cursors. CompareAndSwap returns
// ErrCursorConflict when the stored position no longer matches old.
type CursorStore interface {
	Get(ctx context.Context, name string) (Cursor, error)
	Set(ctx context.Context, name string, position int64) error
	CompareAndSwap(ctx context.Context, name string, old, new int64) error
}

// FunnelStore persists batch funnel runs and per-stage counters.
type FunnelStore interface {
	CreateRun(ctx context.Context) (int64, error)
	FinishRun(ctx context.Context, runID int64, status string, errMsg string) error
	RecordStage(ctx context.Context, stats StageStats) error
	AppendLog(ctx context.Context, runID int64, stage int, message string) error
}
