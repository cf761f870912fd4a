package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL. Position
// rows are created and deleted by ExecutionStore; this store only reads and
// refreshes them.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, ticker, market_title, strategy, category, side,
	size, entry_price, current_price, unrealized_pnl, opened_at, expires_at`

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var side string

	err := row.Scan(
		&p.ID, &p.Ticker, &p.MarketTitle, &p.Strategy, &p.Category, &side,
		&p.Size, &p.EntryPrice, &p.CurrentPrice, &p.UnrealizedPnL,
		&p.OpenedAt, &p.ExpiresAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Side = domain.Side(side)
	return p, nil
}

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// ListOpen returns all live positions, oldest first.
func (s *PositionStore) ListOpen(ctx context.Context) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions ORDER BY opened_at ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open positions: %w", err)
	}
	return positions, nil
}

// GetByTicker returns the live position for a market, or domain.ErrNotFound.
func (s *PositionStore) GetByTicker(ctx context.Context, ticker string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE ticker = $1`, ticker)
	p, err := scanPositionRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Position{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", ticker, err)
	}
	return p, nil
}

// UpdatePrice refreshes the mark price and unrealized PnL for one position.
func (s *PositionStore) UpdatePrice(ctx context.Context, id string, currentPrice, unrealizedPnL float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE positions SET current_price = $2, unrealized_pnl = $3 WHERE id = $1`,
		id, currentPrice, unrealizedPnL)
	if err != nil {
		return fmt.Errorf("postgres: update position price %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetExpiry records the market close time learned after the position opened.
func (s *PositionStore) SetExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE positions SET expires_at = $2 WHERE id = $1`, id, expiresAt)
	if err != nil {
		return fmt.Errorf("postgres: set position expiry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
