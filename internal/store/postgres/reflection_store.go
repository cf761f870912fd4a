package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

// ReflectionStore implements domain.ReflectionStore using PostgreSQL.
type ReflectionStore struct {
	pool *pgxpool.Pool
}

// NewReflectionStore creates a new ReflectionStore backed by the given connection pool.
func NewReflectionStore(pool *pgxpool.Pool) *ReflectionStore {
	return &ReflectionStore{pool: pool}
}

const reflectionSelectCols = `id, trade_id, summary, what_worked, what_failed,
	confidence_score, suggestion, created_at`

func scanReflectionRows(rows pgx.Rows) ([]domain.Reflection, error) {
	var reflections []domain.Reflection
	for rows.Next() {
		var r domain.Reflection
		if err := rows.Scan(
			&r.ID, &r.TradeID, &r.Summary, &r.WhatWorked, &r.WhatFailed,
			&r.ConfidenceScore, &r.Suggestion, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		reflections = append(reflections, r)
	}
	return reflections, rows.Err()
}

// Create inserts a reflection. A second reflection for the same trade hits
// the unique index and is dropped silently, keeping at most one per trade.
func (s *ReflectionStore) Create(ctx context.Context, r domain.Reflection) error {
	const query = `
		INSERT INTO reflections (
			id, trade_id, summary, what_worked, what_failed,
			confidence_score, suggestion, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (trade_id) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query,
		r.ID, r.TradeID, r.Summary, r.WhatWorked, r.WhatFailed,
		r.ConfidenceScore, r.Suggestion, r.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert reflection for trade %s: %w", r.TradeID, err)
	}
	return nil
}

// List returns reflections newest first with pagination, plus the total count.
func (s *ReflectionStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Reflection, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM reflections").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count reflections: %w", err)
	}

	query := `SELECT ` + reflectionSelectCols + ` FROM reflections ORDER BY created_at DESC`
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
		return nil, 0, fmt.Errorf("postgres: list reflections: %w", err)
	}
	defer rows.Close()

	reflections, err := scanReflectionRows(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: scan reflections: %w", err)
	}
	return reflections, total, nil
}

// Recent returns the newest reflections for the recommender's context window.
func (s *ReflectionStore) Recent(ctx context.Context, limit int) ([]domain.Reflection, error) {
	query := `SELECT ` + reflectionSelectCols + ` FROM reflections
		ORDER BY created_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent reflections: %w", err)
	}
	defer rows.Close()
	return scanReflectionRows(rows)
}

// CountForTrade reports how many reflections exist for a trade (0 or 1).
func (s *ReflectionStore) CountForTrade(ctx context.Context, tradeID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM reflections WHERE trade_id = $1`, tradeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count reflections for trade %s: %w", tradeID, err)
	}
	return count, nil
}

// CreateWeekly inserts a weekly report.
func (s *ReflectionStore) CreateWeekly(ctx context.Context, report domain.WeeklyReport) error {
	const query = `
		INSERT INTO weekly_reports (
			id, week_start, week_end, total_trades, win_rate, net_pnl,
			top_strategy, summary, key_learnings, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := s.pool.Exec(ctx, query,
		report.ID, report.WeekStart, report.WeekEnd,
		report.TotalTrades, report.WinRate, report.NetPnL,
		report.TopStrategy, report.Summary, report.KeyLearnings, report.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert weekly report: %w", err)
	}
	return nil
}

// ListWeekly returns all weekly reports, newest first.
func (s *ReflectionStore) ListWeekly(ctx context.Context) ([]domain.WeeklyReport, error) {
	const query = `
		SELECT id, week_start, week_end, total_trades, win_rate, net_pnl,
			top_strategy, summary, key_learnings, created_at
		FROM weekly_reports ORDER BY week_start DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list weekly reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.WeeklyReport
	for rows.Next() {
		var r domain.WeeklyReport
		if err := rows.Scan(
			&r.ID, &r.WeekStart, &r.WeekEnd, &r.TotalTrades, &r.WinRate,
			&r.NetPnL, &r.TopStrategy, &r.Summary, &r.KeyLearnings, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan weekly report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
