// Package risk is the single mandatory checkpoint between a scored signal
// and any capital commitment. The gate owns position-size and exposure
// arithmetic; its only side effects are logging and latching the daily loss
// breaker.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
	"github.com/Nostem/Auto-Trading-Bot/internal/settings"
)

// Gate evaluates candidates against the risk checks in fixed order,
// short-circuiting on the first failure.
type Gate struct {
	trades   domain.TradeStore
	settings *settings.Service
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a risk gate.
func New(trades domain.TradeStore, svc *settings.Service, logger *slog.Logger) *Gate {
	return &Gate{
		trades:   trades,
		settings: svc,
		logger:   logger.With(slog.String("component", "risk")),
		now:      time.Now,
	}
}

// CheckTrade evaluates one candidate. A rejection is a normal decision
// outcome, not an error; every rejection carries its specific reason.
func (g *Gate) CheckTrade(ctx context.Context, sig domain.CandidateSignal, bankroll float64, open []domain.Position, snap settings.Snapshot) domain.TradeDecision {
	// 1. Liquidity floor.
	if minVolume := snap.MinMarketVolume(); sig.MarketVolume < minVolume {
		return g.reject(ctx, sig, fmt.Sprintf("market volume %.0f below floor %.0f", sig.MarketVolume, minVolume))
	}

	// 2. Position-size ceiling. Oversized proposals are clamped, not
	// rejected.
	maxNotional := snap.MaxPositionPct() * bankroll
	proposed := sig.ProposedSize
	if ceiling := MaxContracts(maxNotional, sig.EntryPrice); proposed > ceiling {
		g.logger.InfoContext(ctx, "proposed size clamped to position ceiling",
			slog.String("ticker", sig.Ticker),
			slog.Int("proposed", proposed),
			slog.Int("clamped", ceiling))
		proposed = ceiling
	}

	// 3. Aggregate exposure ceiling.
	openNotional := 0.0
	for _, p := range open {
		openNotional += p.EntryValue()
	}
	proposedNotional := float64(proposed) * sig.EntryPrice
	exposureCeiling := snap.MaxTotalExposurePct() * bankroll
	if openNotional+proposedNotional > exposureCeiling {
		return g.reject(ctx, sig, fmt.Sprintf("aggregate exposure %.2f would exceed ceiling %.2f",
			openNotional+proposedNotional, exposureCeiling))
	}

	// 4. Correlation limit: at most N entries per category in the trailing
	// window.
	if sig.Category != "" {
		window := time.Duration(snap.CategoryWindowHours() * float64(time.Hour))
		cutoff := g.now().Add(-window)
		recent := 0
		for _, p := range open {
			if p.Category == sig.Category && p.OpenedAt.After(cutoff) {
				recent++
			}
		}
		if recent >= snap.MaxCategoryPositions() {
			return g.reject(ctx, sig, fmt.Sprintf("category %s already has %d positions in window", sig.Category, recent))
		}
	}

	// 5. Daily loss breaker. Latching: once tripped the stored date keeps
	// rejecting until the UTC day rolls over or the key is deleted
	// externally.
	today := g.now().UTC().Format("2006-01-02")
	if snap.BreakerTrippedOn() == today {
		return g.reject(ctx, sig, "daily loss breaker tripped")
	}
	midnight, _ := time.Parse("2006-01-02", today)
	realized, err := g.trades.RealizedPnLSince(ctx, midnight)
	if err != nil {
		// Persistence failure: refuse the trade rather than proceed with
		// unsynchronized loss state.
		return g.reject(ctx, sig, fmt.Sprintf("daily pnl unavailable: %v", err))
	}
	if limit := snap.DailyLossLimitPct() * bankroll; realized <= -limit {
		if err := g.settings.TripBreaker(ctx, today); err != nil {
			g.logger.ErrorContext(ctx, "failed to latch loss breaker", slog.String("error", err.Error()))
		}
		return g.reject(ctx, sig, fmt.Sprintf("daily realized loss %.2f breaches limit %.2f", realized, limit))
	}

	// 6. Sizing.
	size := 0
	fraction := 0.0
	switch snap.SizingMode() {
	case "fixed":
		size = int(math.Floor(snap.FixedNotional() / sig.EntryPrice))
	default:
		fraction = snap.KellyFraction()
		size = KellyContracts(sig.ModelProb, sig.EntryPrice, bankroll, fraction)
	}
	if ceiling := MaxContracts(maxNotional, sig.EntryPrice); size > ceiling {
		size = ceiling
	}
	if size > proposed && proposed > 0 {
		size = proposed
	}
	// The approved size, not the proposal, is what the executor commits, so
	// it must fit under the exposure ceiling too.
	if avail := exposureCeiling - openNotional; float64(size)*sig.EntryPrice > avail {
		size = MaxContracts(avail, sig.EntryPrice)
	}
	if size < 1 {
		return g.reject(ctx, sig, "computed size is zero")
	}

	g.logger.InfoContext(ctx, "trade approved",
		slog.String("ticker", sig.Ticker),
		slog.String("side", string(sig.Side)),
		slog.Int("size", size),
		slog.Float64("entry_price", sig.EntryPrice),
		slog.Float64("edge", sig.Edge()))

	return domain.TradeDecision{
		Approved:        true,
		RecommendedSize: size,
		Reason:          "approved",
		SizingFraction:  fraction,
	}
}

func (g *Gate) reject(ctx context.Context, sig domain.CandidateSignal, reason string) domain.TradeDecision {
	g.logger.InfoContext(ctx, "trade rejected",
		slog.String("ticker", sig.Ticker),
		slog.String("strategy", sig.Strategy),
		slog.String("reason", reason))
	return domain.Reject(reason)
}
