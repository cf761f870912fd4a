package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

const (
	ndjsonContentType = "application/x-ndjson"
	snapshotLimit     = 10_000
)

// ObjectPutter uploads one archive object.
type ObjectPutter interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// Archiver periodically snapshots the closed-trade ledger and its
// reflections to date-keyed JSONL objects. Runs within a day overwrite
// the same object, so re-running after a failure is safe.
type Archiver struct {
	trades      domain.TradeStore
	reflections domain.ReflectionStore
	blob        ObjectPutter
	logger      *slog.Logger
	now         func() time.Time
}

// NewArchiver returns an Archiver writing through the given putter.
func NewArchiver(trades domain.TradeStore, reflections domain.ReflectionStore, blob ObjectPutter, logger *slog.Logger) *Archiver {
	return &Archiver{
		trades:      trades,
		reflections: reflections,
		blob:        blob,
		logger:      logger.With("component", "archiver"),
		now:         time.Now,
	}
}

// Archive snapshots closed trades and reflections to the archive bucket.
// A failure on either object leaves the other untouched and the next run
// retries both.
func (a *Archiver) Archive(ctx context.Context) error {
	now := a.now().UTC()
	date := now.Format("2006-01-02")

	trades, err := a.trades.ClosedBefore(ctx, now, snapshotLimit)
	if err != nil {
		return fmt.Errorf("s3blob: load closed trades: %w", err)
	}
	if len(trades) == snapshotLimit {
		a.logger.WarnContext(ctx, "trade snapshot truncated at limit", "limit", snapshotLimit)
	}
	if len(trades) > 0 {
		body, err := encodeTrades(trades)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("trades/%s.jsonl", date)
		if err := a.blob.Put(ctx, key, body, ndjsonContentType); err != nil {
			return err
		}
		a.logger.InfoContext(ctx, "trade ledger archived", "key", key, "trades", len(trades))
	}

	reflections, _, err := a.reflections.List(ctx, domain.ListOpts{Limit: snapshotLimit})
	if err != nil {
		return fmt.Errorf("s3blob: load reflections: %w", err)
	}
	if len(reflections) > 0 {
		body, err := encodeReflections(reflections)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("reflections/%s.jsonl", date)
		if err := a.blob.Put(ctx, key, body, ndjsonContentType); err != nil {
			return err
		}
		a.logger.InfoContext(ctx, "reflections archived", "key", key, "reflections", len(reflections))
	}
	return nil
}

type tradeLine struct {
	ID          string     `json:"id"`
	Ticker      string     `json:"ticker"`
	MarketTitle string     `json:"market_title"`
	Strategy    string     `json:"strategy"`
	Side        string     `json:"side"`
	Size        int        `json:"size"`
	EntryPrice  float64    `json:"entry_price"`
	ExitPrice   *float64   `json:"exit_price,omitempty"`
	GrossPnL    *float64   `json:"gross_pnl,omitempty"`
	Fees        *float64   `json:"fees,omitempty"`
	NetPnL      *float64   `json:"net_pnl,omitempty"`
	Status      string     `json:"status"`
	Rationale   string     `json:"rationale,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

type reflectionLine struct {
	ID              string    `json:"id"`
	TradeID         string    `json:"trade_id"`
	Summary         string    `json:"summary"`
	WhatWorked      string    `json:"what_worked,omitempty"`
	WhatFailed      string    `json:"what_failed,omitempty"`
	ConfidenceScore int       `json:"confidence_score"`
	Suggestion      string    `json:"suggestion,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func encodeTrades(trades []domain.TradeRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, t := range trades {
		line := tradeLine{
			ID:          t.ID,
			Ticker:      t.Ticker,
			MarketTitle: t.MarketTitle,
			Strategy:    t.Strategy,
			Side:        string(t.Side),
			Size:        t.Size,
			EntryPrice:  t.EntryPrice,
			ExitPrice:   t.ExitPrice,
			GrossPnL:    t.GrossPnL,
			Fees:        t.Fees,
			NetPnL:      t.NetPnL,
			Status:      string(t.Status),
			Rationale:   t.Rationale,
			CreatedAt:   t.CreatedAt,
			ResolvedAt:  t.ResolvedAt,
		}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("s3blob: encode trade %s: %w", t.ID, err)
		}
	}
	return buf.Bytes(), nil
}

func encodeReflections(reflections []domain.Reflection) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range reflections {
		line := reflectionLine{
			ID:              r.ID,
			TradeID:         r.TradeID,
			Summary:         r.Summary,
			WhatWorked:      r.WhatWorked,
			WhatFailed:      r.WhatFailed,
			ConfidenceScore: r.ConfidenceScore,
			Suggestion:      r.Suggestion,
			CreatedAt:       r.CreatedAt,
		}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("s3blob: encode reflection %s: %w", r.ID, err)
		}
	}
	return buf.Bytes(), nil
}
