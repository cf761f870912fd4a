// Package intelligence holds the reasoning-backed components: trade
// post-mortems, weekly reports, parameter recommendations and headline
// classification. Everything here is advisory; a reasoning failure
// degrades to a fallback record or to silence, never to a halted loop.
package intelligence

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
	"github.com/Nostem/Auto-Trading-Bot/internal/metrics"
)

// Reasoner is the slice of the reasoning service the package consumes.
type Reasoner interface {
	Enabled() bool
	CompleteJSON(ctx context.Context, system, prompt string, out any) error
}

const reflectSystem = "You are a trading journal AI for a prediction market bot. " +
	"Analyze trades honestly and provide actionable insights. Return JSON only."

const reflectTemplate = `Analyze this completed trade:
Market: %s
Strategy: %s
Side: %s
Entry Price: %.2f
Exit Price: %.2f
Net PnL: $%.2f
Result: %s
Original Reasoning: %s
Time Held: %.1f hours

Return JSON: {"summary": "2 sentence summary", "what_worked": "what went right or null", "what_failed": "what went wrong or null", "confidence_score": 1-10, "strategy_suggestion": "one actionable improvement for next time"}`

// Worker consumes closed trades from a bounded queue and writes one
// reflection per trade. Enqueue never blocks the execution path: a full
// queue drops the request. The reflections table's unique trade_id index
// keeps the at-most-one guarantee even if a trade is enqueued twice.
type Worker struct {
	reasoner Reasoner
	store    domain.ReflectionStore
	analyst  *Analyst
	queue    chan domain.TradeRecord
	logger   *slog.Logger
	now      func() time.Time
}

// NewWorker returns a reflection worker with the given queue capacity.
// analyst may be nil; when set, loss triggers are checked after each
// losing trade's reflection lands.
func NewWorker(reasoner Reasoner, store domain.ReflectionStore, analyst *Analyst, buffer int, logger *slog.Logger) *Worker {
	if buffer < 1 {
		buffer = 32
	}
	return &Worker{
		reasoner: reasoner,
		store:    store,
		analyst:  analyst,
		queue:    make(chan domain.TradeRecord, buffer),
		logger:   logger.With("component", "reflection_worker"),
		now:      time.Now,
	}
}

// Enqueue hands a finalized trade to the worker. It reports false when the
// queue is full and the request was dropped.
func (w *Worker) Enqueue(trade domain.TradeRecord) bool {
	select {
	case w.queue <- trade:
		return true
	default:
		metrics.ReflectionsDropped.Inc()
		return false
	}
}

// Run drains the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case trade := <-w.queue:
			w.process(ctx, trade)
		}
	}
}

func (w *Worker) process(ctx context.Context, trade domain.TradeRecord) {
	reflection := w.generate(ctx, trade)
	if err := w.store.Create(ctx, reflection); err != nil {
		w.logger.ErrorContext(ctx, "reflection save failed",
			"trade_id", trade.ID, "error", err)
		return
	}
	w.logger.InfoContext(ctx, "reflection saved", "trade_id", trade.ID)

	if w.analyst != nil && trade.IsLoss() {
		if err := w.analyst.CheckLossTriggers(ctx); err != nil {
			w.logger.WarnContext(ctx, "loss trigger check failed", "error", err)
		}
	}
}

// generate asks the reasoning service for a post-mortem and falls back to
// a plain record when the service is disabled or fails, so every closed
// trade ends up with exactly one reflection either way.
func (w *Worker) generate(ctx context.Context, trade domain.TradeRecord) domain.Reflection {
	netPnL := 0.0
	if trade.NetPnL != nil {
		netPnL = *trade.NetPnL
	}
	exitPrice := trade.EntryPrice
	if trade.ExitPrice != nil {
		exitPrice = *trade.ExitPrice
	}
	result := "LOSS"
	if netPnL > 0 {
		result = "WIN"
	}
	hours := 0.0
	if trade.ResolvedAt != nil {
		hours = trade.ResolvedAt.Sub(trade.CreatedAt).Hours()
	}

	var out struct {
		Summary            string `json:"summary"`
		WhatWorked         string `json:"what_worked"`
		WhatFailed         string `json:"what_failed"`
		ConfidenceScore    int    `json:"confidence_score"`
		StrategySuggestion string `json:"strategy_suggestion"`
	}

	ok := false
	if w.reasoner != nil && w.reasoner.Enabled() {
		prompt := fmt.Sprintf(reflectTemplate,
			trade.MarketTitle, trade.Strategy, trade.Side, trade.EntryPrice,
			exitPrice, netPnL, result, trade.Rationale, hours)
		if err := w.reasoner.CompleteJSON(ctx, reflectSystem, prompt, &out); err != nil {
			w.logger.WarnContext(ctx, "reflection generation failed, using fallback",
				"trade_id", trade.ID, "error", err)
		} else {
			ok = true
		}
	}
	if !ok || out.Summary == "" {
		verb := "lost"
		if netPnL > 0 {
			verb = "won"
		}
		out.Summary = fmt.Sprintf("Trade %s $%.2f.", verb, math.Abs(netPnL))
		out.WhatFailed = "Reflection generation failed."
		out.ConfidenceScore = 5
		out.StrategySuggestion = "Review trade manually."
	}
	if out.ConfidenceScore < 1 || out.ConfidenceScore > 10 {
		out.ConfidenceScore = 5
	}

	return domain.Reflection{
		ID:              uuid.NewString(),
		TradeID:         trade.ID,
		Summary:         out.Summary,
		WhatWorked:      out.WhatWorked,
		WhatFailed:      out.WhatFailed,
		ConfidenceScore: out.ConfidenceScore,
		Suggestion:      out.StrategySuggestion,
		CreatedAt:       w.now(),
	}
}
