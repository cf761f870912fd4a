package domain

import (
	"context"
	"time"
)

// ListOpts carries pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
	Status string
}

// SettingStore is the durable control plane: a key/value table that the
// dashboard writes and the loop reads fresh at the start of every task
// invocation. No component may cache its contents across invocations.
type SettingStore interface {
	Get(ctx context.Context, key string) (string, error) // ErrNotFound when absent
	All(ctx context.Context) (map[string]string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// TradeStore reads and lists the append-only trade ledger. Writes that
// create or finalize trades go through ExecutionStore so they stay atomic
// with the positions table.
type TradeStore interface {
	GetByID(ctx context.Context, id string) (TradeRecord, error)
	GetOpenByTicker(ctx context.Context, ticker string) (TradeRecord, error)
	List(ctx context.Context, opts ListOpts) ([]TradeRecord, int, error)
	// RecentClosed returns the most recently resolved closed trades,
	// newest first.
	RecentClosed(ctx context.Context, limit int) ([]TradeRecord, error)
	ClosedSince(ctx context.Context, since time.Time) ([]TradeRecord, error)
	// RealizedPnLSince sums net PnL over trades resolved at or after the
	// given instant. The daily loss breaker is built on this.
	RealizedPnLSince(ctx context.Context, since time.Time) (float64, error)
	CountClosedLosses(ctx context.Context) (int, error)
	ClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]TradeRecord, error)
}

// PositionStore reads and refreshes open positions. Creation and deletion
// go through ExecutionStore.
type PositionStore interface {
	ListOpen(ctx context.Context) ([]Position, error)
	GetByTicker(ctx context.Context, ticker string) (Position, error)
	UpdatePrice(ctx context.Context, id string, currentPrice, unrealizedPnL float64) error
	SetExpiry(ctx context.Context, id string, expiresAt time.Time) error
}

// ExecutionStore performs the two multi-table writes of the trade
// lifecycle, each as a single transaction:
//
//   - OpenTrade inserts the ledger row and the position row together, so a
//     Position can never exist without its TradeRecord or vice versa.
//   - FinalizeTrade updates the ledger row, deletes the position, and
//     applies the net PnL to the current_bankroll setting together.
type ExecutionStore interface {
	OpenTrade(ctx context.Context, trade TradeRecord, pos Position) error
	FinalizeTrade(ctx context.Context, close CloseTrade) error
}

// ReflectionStore persists trade post-mortems and weekly reports.
type ReflectionStore interface {
	Create(ctx context.Context, r Reflection) error
	List(ctx context.Context, opts ListOpts) ([]Reflection, int, error)
	Recent(ctx context.Context, limit int) ([]Reflection, error)
	CountForTrade(ctx context.Context, tradeID string) (int, error)
	CreateWeekly(ctx context.Context, report WeeklyReport) error
	ListWeekly(ctx context.Context) ([]WeeklyReport, error)
}

// RecommendationStore persists parameter-change proposals and their
// approval state machine. Approve applies the proposed value to the
// settings table in the same transaction that flips the status, so the two
// can never diverge.
type RecommendationStore interface {
	Create(ctx context.Context, rec Recommendation) error
	GetByID(ctx context.Context, id string) (Recommendation, error)
	List(ctx context.Context, opts ListOpts) ([]Recommendation, int, error)
	HasPendingForKey(ctx context.Context, key string) (bool, error)
	ExistsForTriggerSince(ctx context.Context, trigger string, since time.Time) (bool, error)
	CountForTrigger(ctx context.Context, trigger string) (int, error)
	Approve(ctx context.Context, id string) (Recommendation, error)
	Deny(ctx context.Context, id, reason string) error
	ExpirePending(ctx context.Context, olderThan time.Time, reason string) (int, error)
}
