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

// RecommendationStore implements domain.RecommendationStore using PostgreSQL.
type RecommendationStore struct {
	pool *pgxpool.Pool
}

// NewRecommendationStore creates a new RecommendationStore backed by the given connection pool.
func NewRecommendationStore(pool *pgxpool.Pool) *RecommendationStore {
	return &RecommendationStore{pool: pool}
}

const recommendationSelectCols = `id, setting_key, current_value, proposed_value,
	rationale, trigger_kind, status, denial_reason, resolved_at, created_at`

func scanRecommendationRow(row pgx.Row) (domain.Recommendation, error) {
	var r domain.Recommendation
	var status string

	err := row.Scan(
		&r.ID, &r.SettingKey, &r.CurrentValue, &r.ProposedValue,
		&r.Rationale, &r.Trigger, &status, &r.DenialReason,
		&r.ResolvedAt, &r.CreatedAt,
	)
	if err != nil {
		return domain.Recommendation{}, err
	}
	r.Status = domain.RecommendationStatus(status)
	return r, nil
}

func scanRecommendationRows(rows pgx.Rows) ([]domain.Recommendation, error) {
	var recs []domain.Recommendation
	for rows.Next() {
		r, err := scanRecommendationRow(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Create inserts a pending recommendation.
func (s *RecommendationStore) Create(ctx context.Context, rec domain.Recommendation) error {
	const query = `
		INSERT INTO recommendations (
			id, setting_key, current_value, proposed_value, rationale,
			trigger_kind, status, denial_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if _, err := s.pool.Exec(ctx, query,
		rec.ID, rec.SettingKey, rec.CurrentValue, rec.ProposedValue,
		rec.Rationale, rec.Trigger, string(rec.Status), rec.DenialReason,
		rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert recommendation for %s: %w", rec.SettingKey, err)
	}
	return nil
}

// GetByID returns one recommendation or domain.ErrNotFound.
func (s *RecommendationStore) GetByID(ctx context.Context, id string) (domain.Recommendation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recommendationSelectCols+` FROM recommendations WHERE id = $1`, id)
	r, err := scanRecommendationRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("postgres: get recommendation %s: %w", id, err)
	}
	return r, nil
}

// List returns recommendations newest first with optional status filtering.
func (s *RecommendationStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Recommendation, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	argIdx := 1

	if opts.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, opts.Status)
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM recommendations"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count recommendations: %w", err)
	}

	query := `SELECT ` + recommendationSelectCols + ` FROM recommendations` + where +
		" ORDER BY created_at DESC"
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
		return nil, 0, fmt.Errorf("postgres: list recommendations: %w", err)
	}
	defer rows.Close()

	recs, err := scanRecommendationRows(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: scan recommendations: %w", err)
	}
	return recs, total, nil
}

// HasPendingForKey reports whether a pending recommendation already exists
// for the given setting key.
func (s *RecommendationStore) HasPendingForKey(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM recommendations WHERE setting_key = $1 AND status = 'pending')`,
		key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: pending recommendation for %s: %w", key, err)
	}
	return exists, nil
}

// ExistsForTriggerSince reports whether any recommendation for the trigger
// was created at or after the given instant, regardless of status.
func (s *RecommendationStore) ExistsForTriggerSince(ctx context.Context, trigger string, since time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM recommendations WHERE trigger_kind = $1 AND created_at >= $2)`,
		trigger, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: recommendation for trigger %s: %w", trigger, err)
	}
	return exists, nil
}

// CountForTrigger counts all recommendations ever created for a trigger.
func (s *RecommendationStore) CountForTrigger(ctx context.Context, trigger string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM recommendations WHERE trigger_kind = $1`, trigger).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count recommendations for trigger %s: %w", trigger, err)
	}
	return count, nil
}

// Approve flips a pending recommendation to approved and applies the
// proposed value to the settings table in the same transaction. Approving a
// non-pending or missing recommendation returns domain.ErrNotFound.
func (s *RecommendationStore) Approve(ctx context.Context, id string) (domain.Recommendation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("postgres: begin approve: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const update = `
		UPDATE recommendations
		SET status = 'approved', resolved_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + recommendationSelectCols

	row := tx.QueryRow(ctx, update, id)
	rec, err := scanRecommendationRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("postgres: approve recommendation %s: %w", id, err)
	}

	const applySetting = `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := tx.Exec(ctx, applySetting, rec.SettingKey, rec.ProposedValue); err != nil {
		return domain.Recommendation{}, fmt.Errorf("postgres: apply recommendation %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Recommendation{}, fmt.Errorf("postgres: commit approve: %w", err)
	}
	return rec, nil
}

// Deny flips a pending recommendation to denied with an operator reason.
func (s *RecommendationStore) Deny(ctx context.Context, id, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE recommendations
		SET status = 'denied', denial_reason = $2, resolved_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		id, reason)
	if err != nil {
		return fmt.Errorf("postgres: deny recommendation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ExpirePending denies all pending recommendations created before the
// cutoff. Returns the number expired.
func (s *RecommendationStore) ExpirePending(ctx context.Context, olderThan time.Time, reason string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE recommendations
		SET status = 'denied', denial_reason = $2, resolved_at = NOW()
		WHERE status = 'pending' AND created_at < $1`,
		olderThan, reason)
	if err != nil {
		return 0, fmt.Errorf("postgres: expire pending recommendations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
