package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore. Each method is one
// transaction spanning the trades, positions, and settings tables.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore backed by the given connection pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

const uniqueViolation = "23505"

// OpenTrade inserts the ledger row and the position row together. A second
// position for the same ticker hits the unique index and the whole
// transaction rolls back with domain.ErrAlreadyExists.
func (s *ExecutionStore) OpenTrade(ctx context.Context, trade domain.TradeRecord, pos domain.Position) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin open trade: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertTrade = `
		INSERT INTO trades (
			id, ticker, market_title, strategy, side, size,
			entry_price, status, rationale, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := tx.Exec(ctx, insertTrade,
		trade.ID, trade.Ticker, trade.MarketTitle, trade.Strategy,
		string(trade.Side), trade.Size,
		trade.EntryPrice, string(trade.Status), trade.Rationale, trade.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", trade.Ticker, err)
	}

	const insertPosition = `
		INSERT INTO positions (
			id, ticker, market_title, strategy, category, side,
			size, entry_price, current_price, unrealized_pnl, opened_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	if _, err := tx.Exec(ctx, insertPosition,
		pos.ID, pos.Ticker, pos.MarketTitle, pos.Strategy, pos.Category,
		string(pos.Side), pos.Size, pos.EntryPrice, pos.CurrentPrice,
		pos.UnrealizedPnL, pos.OpenedAt, pos.ExpiresAt,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("postgres: position exists for %s: %w", pos.Ticker, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: insert position %s: %w", pos.Ticker, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit open trade: %w", err)
	}
	return nil
}

// FinalizeTrade closes the ledger row, removes the position, and applies
// the net PnL to the current_bankroll setting, all in one transaction. A
// trade that is not open rolls back with domain.ErrNotFound so a close can
// never apply twice.
func (s *ExecutionStore) FinalizeTrade(ctx context.Context, close domain.CloseTrade) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin finalize trade: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const updateTrade = `
		UPDATE trades SET
			exit_price = $2, gross_pnl = $3, fees = $4, net_pnl = $5,
			status = $6, resolved_at = $7
		WHERE id = $1 AND status = 'open'`

	tag, err := tx.Exec(ctx, updateTrade,
		close.TradeID, close.ExitPrice, close.GrossPnL, close.Fees,
		close.NetPnL, string(close.Status), close.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: finalize trade %s: %w", close.TradeID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: finalize trade %s: not open: %w", close.TradeID, domain.ErrNotFound)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM positions WHERE id = $1`, close.PositionID); err != nil {
		return fmt.Errorf("postgres: delete position %s: %w", close.PositionID, err)
	}

	// Apply realized PnL to the bankroll inside the same transaction. The
	// read locks the row so concurrent finalizations serialize.
	var raw string
	err = tx.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = 'current_bankroll' FOR UPDATE`).Scan(&raw)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: read bankroll: %w", err)
	}
	bankroll, _ := strconv.ParseFloat(raw, 64)
	bankroll += close.NetPnL

	const upsertBankroll = `
		INSERT INTO settings (key, value, updated_at)
		VALUES ('current_bankroll', $1, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := tx.Exec(ctx, upsertBankroll,
		strconv.FormatFloat(bankroll, 'f', 2, 64)); err != nil {
		return fmt.Errorf("postgres: update bankroll: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit finalize trade: %w", err)
	}
	return nil
}
