package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// WalletStore implements domain.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *pgxpool.Pool
}

// NewWalletStore creates a new WalletStore backed by the given connection pool.
func NewWalletStore(pool *pgxpool.Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

var _ domain.WalletStore = (*WalletStore)(nil)

const walletSelectCols = `address, source, username, balance, portfolio_value,
	account_created_at, nonce,
	pnl_all, roi_all, win_rate_all, volume_all, trade_count_all, wins_all, losses_all, max_drawdown_all,
	pnl_7d, roi_7d, win_rate_7d, volume_7d, trade_count_7d, wins_7d, losses_7d, max_drawdown_7d,
	pnl_30d, roi_30d, win_rate_30d, volume_30d, trade_count_30d, wins_30d, losses_30d, max_drawdown_30d,
	profit_factor_30d, copy_score, insider_score, red_flags, behavior,
	metrics_updated_at, created_at`

func scanWalletRow(row pgx.Row) (domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(
		&w.Address, &w.Source, &w.Username, &w.Balance, &w.PortfolioValue,
		&w.AccountCreatedAt, &w.Nonce,
		&w.AllTime.PnL, &w.AllTime.ROI, &w.AllTime.WinRate, &w.AllTime.Volume,
		&w.AllTime.TradeCount, &w.AllTime.Wins, &w.AllTime.Losses, &w.AllTime.MaxDrawdown,
		&w.Last7d.PnL, &w.Last7d.ROI, &w.Last7d.WinRate, &w.Last7d.Volume,
		&w.Last7d.TradeCount, &w.Last7d.Wins, &w.Last7d.Losses, &w.Last7d.MaxDrawdown,
		&w.Last30d.PnL, &w.Last30d.ROI, &w.Last30d.WinRate, &w.Last30d.Volume,
		&w.Last30d.TradeCount, &w.Last30d.Wins, &w.Last30d.Losses, &w.Last30d.MaxDrawdown,
		&w.ProfitFactor30d, &w.CopyScore, &w.InsiderScore, &w.RedFlags, &w.Behavior,
		&w.MetricsUpdatedAt, &w.CreatedAt,
	)
	return w, err
}

func scanWalletRows(rows pgx.Rows) ([]domain.Wallet, error) {
	var wallets []domain.Wallet
	for rows.Next() {
		w, err := scanWalletRow(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// Upsert inserts or fully refreshes the analytics row for one address.
func (s *WalletStore) Upsert(ctx context.Context, w domain.Wallet) error {
	const query = `
		INSERT INTO wallets (
			address, source, username, balance, portfolio_value,
			account_created_at, nonce,
			pnl_all, roi_all, win_rate_all, volume_all, trade_count_all, wins_all, losses_all, max_drawdown_all,
			pnl_7d, roi_7d, win_rate_7d, volume_7d, trade_count_7d, wins_7d, losses_7d, max_drawdown_7d,
			pnl_30d, roi_30d, win_rate_30d, volume_30d, trade_count_30d, wins_30d, losses_30d, max_drawdown_30d,
			profit_factor_30d, copy_score, insider_score, red_flags, behavior,
			metrics_updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23,
			$24, $25, $26, $27, $28, $29, $30, $31,
			$32, $33, $34, $35, $36,
			NOW()
		) ON CONFLICT (address) DO UPDATE SET
			source = EXCLUDED.source,
			username = EXCLUDED.username,
			balance = EXCLUDED.balance,
			portfolio_value = EXCLUDED.portfolio_value,
			account_created_at = EXCLUDED.account_created_at,
			nonce = EXCLUDED.nonce,
			pnl_all = EXCLUDED.pnl_all,
			roi_all = EXCLUDED.roi_all,
			win_rate_all = EXCLUDED.win_rate_all,
			volume_all = EXCLUDED.volume_all,
			trade_count_all = EXCLUDED.trade_count_all,
			wins_all = EXCLUDED.wins_all,
			losses_all = EXCLUDED.losses_all,
			max_drawdown_all = EXCLUDED.max_drawdown_all,
			pnl_7d = EXCLUDED.pnl_7d,
			roi_7d = EXCLUDED.roi_7d,
			win_rate_7d = EXCLUDED.win_rate_7d,
			volume_7d = EXCLUDED.volume_7d,
			trade_count_7d = EXCLUDED.trade_count_7d,
			wins_7d = EXCLUDED.wins_7d,
			losses_7d = EXCLUDED.losses_7d,
			max_drawdown_7d = EXCLUDED.max_drawdown_7d,
			pnl_30d = EXCLUDED.pnl_30d,
			roi_30d = EXCLUDED.roi_30d,
			win_rate_30d = EXCLUDED.win_rate_30d,
			volume_30d = EXCLUDED.volume_30d,
			trade_count_30d = EXCLUDED.trade_count_30d,
			wins_30d = EXCLUDED.wins_30d,
			losses_30d = EXCLUDED.losses_30d,
			max_drawdown_30d = EXCLUDED.max_drawdown_30d,
			profit_factor_30d = EXCLUDED.profit_factor_30d,
			copy_score = EXCLUDED.copy_score,
			insider_score = EXCLUDED.insider_score,
			red_flags = EXCLUDED.red_flags,
			behavior = EXCLUDED.behavior,
			metrics_updated_at = NOW()`

	redFlags := w.RedFlags
	if redFlags == nil {
		redFlags = []string{}
	}

	_, err := s.pool.Exec(ctx, query,
		w.Address, w.Source, w.Username, w.Balance, w.PortfolioValue,
		w.AccountCreatedAt, int64(w.Nonce),
		w.AllTime.PnL, w.AllTime.ROI, w.AllTime.WinRate, w.AllTime.Volume,
		w.AllTime.TradeCount, w.AllTime.Wins, w.AllTime.Losses, w.AllTime.MaxDrawdown,
		w.Last7d.PnL, w.Last7d.ROI, w.Last7d.WinRate, w.Last7d.Volume,
		w.Last7d.TradeCount, w.Last7d.Wins, w.Last7d.Losses, w.Last7d.MaxDrawdown,
		w.Last30d.PnL, w.Last30d.ROI, w.Last30d.WinRate, w.Last30d.Volume,
		w.Last30d.TradeCount, w.Last30d.Wins, w.Last30d.Losses, w.Last30d.MaxDrawdown,
		w.ProfitFactor30d, w.CopyScore, w.InsiderScore, redFlags, w.Behavior,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert wallet %s: %w", w.Address, err)
	}
	return nil
}

// UpdateInsiderScore writes the latest composite insider score for an
// address. A missing row is not an error: the scorer may observe trades from
// wallets discovery has not analysed yet.
func (s *WalletStore) UpdateInsiderScore(ctx context.Context, address string, score int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE wallets SET insider_score = $2 WHERE address = $1`,
		address, score,
	)
	if err != nil {
		return fmt.Errorf("postgres: update insider score %s: %w", address, err)
	}
	return nil
}

// Get returns the wallet row for the given address, or domain.ErrNotFound.
func (s *WalletStore) Get(ctx context.Context, address string) (domain.Wallet, error) {
	query := `SELECT ` + walletSelectCols + ` FROM wallets WHERE address = $1`
	w, err := scanWalletRow(s.pool.QueryRow(ctx, query, address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Wallet{}, fmt.Errorf("postgres: get wallet %s: %w", address, domain.ErrNotFound)
		}
		return domain.Wallet{}, fmt.Errorf("postgres: get wallet %s: %w", address, err)
	}
	return w, nil
}

// ListAddresses returns every known wallet address.
func (s *WalletStore) ListAddresses(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT address FROM wallets`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wallet addresses: %w", err)
	}
	defer rows.Close()

	var addrs []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("postgres: scan wallet address: %w", err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, rows.Err()
}

// ListMetricsAges returns each address mapped to its metrics_updated_at, used
// by discovery to decide whose analysis has gone stale.
func (s *WalletStore) ListMetricsAges(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.pool.Query(ctx, `SELECT address, metrics_updated_at FROM wallets`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wallet metrics ages: %w", err)
	}
	defer rows.Close()

	ages := make(map[string]time.Time)
	for rows.Next() {
		var (
			addr string
			at   time.Time
		)
		if err := rows.Scan(&addr, &at); err != nil {
			return nil, fmt.Errorf("postgres: scan wallet metrics age: %w", err)
		}
		ages[addr] = at
	}
	return ages, rows.Err()
}

// ListPage returns wallets ordered by copy_score descending with pagination.
func (s *WalletStore) ListPage(ctx context.Context, opts domain.ListOpts) ([]domain.Wallet, error) {
	query := `SELECT ` + walletSelectCols + ` FROM wallets ORDER BY copy_score DESC, address ASC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wallets: %w", err)
	}
	defer rows.Close()

	wallets, err := scanWalletRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan wallets: %w", err)
	}
	return wallets, nil
}

// ListQualified returns wallets at or above the given copy score.
func (s *WalletStore) ListQualified(ctx context.Context, minCopyScore int) ([]domain.Wallet, error) {
	query := `SELECT ` + walletSelectCols + ` FROM wallets WHERE copy_score >= $1 ORDER BY copy_score DESC`
	rows, err := s.pool.Query(ctx, query, minCopyScore)
	if err != nil {
		return nil, fmt.Errorf("postgres: list qualified wallets: %w", err)
	}
	defer rows.Close()

	wallets, err := scanWalletRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan qualified wallets: %w", err)
	}
	return wallets, nil
}
