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

// TradeStore implements domain.TradeStore using PostgreSQL. All writes to
// the trades table go through ExecutionStore.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, ticker, market_title, strategy, side, size,
	entry_price, exit_price, gross_pnl, fees, net_pnl,
	status, rationale, created_at, resolved_at`

func scanTradeRow(row pgx.Row) (domain.TradeRecord, error) {
	var t domain.TradeRecord
	var side, status string

	err := row.Scan(
		&t.ID, &t.Ticker, &t.MarketTitle, &t.Strategy, &side, &t.Size,
		&t.EntryPrice, &t.ExitPrice, &t.GrossPnL, &t.Fees, &t.NetPnL,
		&status, &t.Rationale, &t.CreatedAt, &t.ResolvedAt,
	)
	if err != nil {
		return domain.TradeRecord{}, err
	}
	t.Side = domain.Side(side)
	t.Status = domain.TradeStatus(status)
	return t, nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	for rows.Next() {
		t, err := scanTradeRow(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetByID returns one trade or domain.ErrNotFound.
func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.TradeRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE id = $1`, id)
	t, err := scanTradeRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TradeRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return t, nil
}

// GetOpenByTicker returns the open trade for a market, or domain.ErrNotFound.
func (s *TradeStore) GetOpenByTicker(ctx context.Context, ticker string) (domain.TradeRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE ticker = $1 AND status = 'open'`, ticker)
	t, err := scanTradeRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TradeRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("postgres: get open trade %s: %w", ticker, err)
	}
	return t, nil
}

// List returns trades with pagination, optional status and time filtering,
// plus the total row count for the filter.
func (s *TradeStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.TradeRecord, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	argIdx := 1

	if opts.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, opts.Status)
		argIdx++
	}
	if opts.Since != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		where += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM trades"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count trades: %w", err)
	}

	query := `SELECT ` + tradeSelectCols + ` FROM trades` + where + " ORDER BY created_at DESC"
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
		return nil, 0, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, total, nil
}

// RecentClosed returns the most recently resolved closed trades, newest first.
func (s *TradeStore) RecentClosed(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + `
		FROM trades WHERE status = 'closed'
		ORDER BY resolved_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent closed trades: %w", err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// ClosedSince returns closed trades resolved at or after the given instant.
func (s *TradeStore) ClosedSince(ctx context.Context, since time.Time) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + `
		FROM trades WHERE status = 'closed' AND resolved_at >= $1
		ORDER BY resolved_at ASC`
	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: closed trades since: %w", err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// RealizedPnLSince sums net PnL over trades resolved at or after the given
// instant. Returns 0 when no trades match.
func (s *TradeStore) RealizedPnLSince(ctx context.Context, since time.Time) (float64, error) {
	var total *float64
	err := s.pool.QueryRow(ctx,
		`SELECT SUM(net_pnl) FROM trades WHERE status = 'closed' AND resolved_at >= $1`,
		since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: realized pnl since: %w", err)
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// CountClosedLosses counts closed trades with negative net PnL.
func (s *TradeStore) CountClosedLosses(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM trades WHERE status = 'closed' AND net_pnl < 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count closed losses: %w", err)
	}
	return count, nil
}

// ClosedBefore returns closed trades resolved strictly before the cutoff,
// oldest first (for archiving).
func (s *TradeStore) ClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + `
		FROM trades WHERE status IN ('closed', 'cancelled') AND resolved_at < $1
		ORDER BY resolved_at ASC LIMIT $2`
	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: closed trades before: %w", err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}
