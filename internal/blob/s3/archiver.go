package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// Narrow store interfaces: the archiver only needs the time-ranged read
// methods it actually calls, satisfied implicitly by the Postgres stores.

// TradeArchiveStore provides read access to trades for archival.
type TradeArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error)
}

// InsiderAlertArchiveStore provides read access to insider alerts for archival.
type InsiderAlertArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.InsiderAlert, error)
}

// Archiver serialises expiring rows to JSONL and uploads them to object
// storage before the retention sweep deletes them. Deletion is not performed
// here; the retention job deletes only after the upload succeeds.
type Archiver struct {
	writer *Writer
	trades TradeArchiveStore
	alerts InsiderAlertArchiveStore
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer *Writer, trades TradeArchiveStore, alerts InsiderAlertArchiveStore) *Archiver {
	return &Archiver{writer: writer, trades: trades, alerts: alerts}
}

// ArchiveTrades uploads all trades received before the cutoff to
// archive/trades/YYYY-MM-DD.jsonl and returns the number archived.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	if err := a.writer.Upload(ctx, archivePath("trades", before), buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}
	return int64(len(trades)), nil
}

// ArchiveInsiderAlerts uploads all insider alerts created before the cutoff
// to archive/insider_alerts/YYYY-MM-DD.jsonl and returns the number archived.
func (a *Archiver) ArchiveInsiderAlerts(ctx context.Context, before time.Time) (int64, error) {
	alerts, err := a.alerts.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive insider alerts query: %w", err)
	}
	if len(alerts) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(alerts)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive insider alerts marshal: %w", err)
	}

	if err := a.writer.Upload(ctx, archivePath("insider_alerts", before), buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive insider alerts upload: %w", err)
	}
	return int64(len(alerts)), nil
}

// archivePath builds the object key, partitioned by the cutoff date.
//
//	archive/trades/2026-08-17.jsonl
//	archive/insider_alerts/2026-07-25.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01-02"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
