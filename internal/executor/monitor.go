package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
	"github.com/Nostem/Auto-Trading-Bot/internal/metrics"
	"github.com/Nostem/Auto-Trading-Bot/internal/settings"
)

// MonitorPositions refreshes every open position against a live quote and
// applies the exit rules in priority order: settlement, pre-expiry exits,
// the bond absolute-cents stop, the percentage stop, the BTC take-profit,
// and the market-making maximum hold. A bond position drifting past half
// its stop distance raises an elevated log without forcing the exit. A
// failed quote or price write skips that position until the next cycle.
func (e *Engine) MonitorPositions(ctx context.Context, snap settings.Snapshot) error {
	open, err := e.positions.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("executor: list open positions: %w", err)
	}

	metrics.OpenPositions.Set(float64(len(open)))
	var exposure float64
	for _, p := range open {
		exposure += p.EntryValue()
	}
	metrics.OpenExposure.Set(exposure)

	now := e.now()
	for _, pos := range open {
		m, err := e.exchange.Quote(ctx, pos.Ticker)
		if err != nil {
			e.logger.WarnContext(ctx, "quote refresh failed, skipping position",
				"ticker", pos.Ticker, "error", err)
			continue
		}

		current := m.SidePrice(pos.Side)
		unrealized := (current - pos.EntryPrice) * float64(pos.Size)
		if err := e.positions.UpdatePrice(ctx, pos.ID, current, unrealized); err != nil {
			e.logger.WarnContext(ctx, "price update failed, skipping position",
				"ticker", pos.Ticker, "error", err)
			continue
		}

		exitPrice, reason := e.evaluateExit(ctx, pos, m, current, now, snap)
		if reason == "" {
			continue
		}
		if err := e.ClosePosition(ctx, pos, exitPrice, reason); err != nil {
			e.logger.ErrorContext(ctx, "position close failed",
				"ticker", pos.Ticker, "reason", reason, "error", err)
		}
	}
	return nil
}

// evaluateExit returns the exit price and reason for the first matching
// rule, or an empty reason when the position should ride.
func (e *Engine) evaluateExit(ctx context.Context, pos domain.Position, m domain.Market, current float64, now time.Time, snap settings.Snapshot) (float64, string) {
	if m.Resolved() {
		settle := 0.0
		if m.Result == pos.Side {
			settle = 1.0
		}
		return settle, ExitReasonResolved
	}

	if secs := preExpirySeconds(pos.Strategy, snap); secs > 0 && !m.CloseTime.IsZero() {
		if m.CloseTime.Sub(now) <= time.Duration(secs)*time.Second {
			return current, ExitReasonPreExpiry
		}
	}

	adverse := pos.EntryPrice - current
	bondStop := snap.Param("bond_stop_loss_cents")
	if pos.Strategy == "bond" && adverse >= bondStop {
		return current, ExitReasonStopLoss
	}

	if pos.EntryPrice > 0 && adverse/pos.EntryPrice >= snap.Param("stop_loss_threshold") {
		return current, ExitReasonStopLoss
	}

	if pos.Strategy == "btc" && pos.EntryPrice > 0 &&
		(current-pos.EntryPrice)/pos.EntryPrice >= snap.Param("btc_take_profit_pct") {
		return current, ExitReasonTakeProfit
	}

	if pos.Strategy == "market_making" {
		maxHold := time.Duration(snap.Param("mm_max_hold_hours") * float64(time.Hour))
		if now.Sub(pos.OpenedAt) >= maxHold {
			return current, ExitReasonMaxHold
		}
	}

	if pos.Strategy == "bond" && adverse >= bondStop/2 {
		e.logger.WarnContext(ctx, "bond position moving adversely",
			"ticker", pos.Ticker, "entry_price", pos.EntryPrice,
			"current_price", current, "adverse_cents", adverse)
	}
	return 0, ""
}

func preExpirySeconds(strategy string, snap settings.Snapshot) float64 {
	switch strategy {
	case "bond":
		return snap.Param("bond_pre_expiry_sec")
	case "market_making":
		return snap.Param("mm_pre_expiry_sec")
	case "btc":
		return snap.Param("btc_pre_expiry_sec")
	}
	return 0
}
