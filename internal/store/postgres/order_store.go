package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polysight/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

var _ domain.OrderStore = (*OrderStore)(nil)

const orderSelectCols = `id, token_id, condition_id, side, size, price,
	filled_size, status, order_type, paper, error, created_at, updated_at`

func scanOrderRow(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.TokenID, &o.ConditionID, &o.Side, &o.Size, &o.Price,
		&o.FilledSize, &o.Status, &o.Type, &o.Paper, &o.Error,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// Create persists a new order row.
func (s *OrderStore) Create(ctx context.Context, order domain.Order) error {
	const query = `
		INSERT INTO user_orders (
			id, token_id, condition_id, side, size, price,
			filled_size, status, order_type, paper, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.pool.Exec(ctx, query,
		order.ID, order.TokenID, order.ConditionID, order.Side, order.Size, order.Price,
		order.FilledSize, order.Status, order.Type, order.Paper, order.Error,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", order.ID, err)
	}
	return nil
}

// UpdateStatus advances the order lifecycle and records fills.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, filledSize float64, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE user_orders SET status = $2, filled_size = $3, error = $4, updated_at = NOW() WHERE id = $1`,
		id, status, filledSize, errMsg,
	)
	if err != nil {
		return fmt.Errorf("postgres: update order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update order %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GetByID returns the order with the given id, or domain.ErrNotFound.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM user_orders WHERE id = $1`
	o, err := scanOrderRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, domain.ErrNotFound)
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return o, nil
}

// ListOpen returns orders that have not reached a terminal status.
func (s *OrderStore) ListOpen(ctx context.Context) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM user_orders
		WHERE status NOT IN ('FILLED', 'CANCELLED', 'FAILED') ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan open order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
