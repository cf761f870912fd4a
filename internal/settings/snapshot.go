package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

// Snapshot is an immutable view of the settings table taken at the start of
// one task invocation. All reads within a cycle go through the same
// snapshot so a mid-cycle edit cannot see half-applied parameters.
type Snapshot struct {
	values  map[string]string
	takenAt time.Time
}

// TakenAt reports when the snapshot was loaded.
func (s Snapshot) TakenAt() time.Time { return s.takenAt }

// Raw returns the stored value for key and whether it was present.
func (s Snapshot) Raw(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s Snapshot) float(key string, def float64) float64 {
	raw, ok := s.values[key]
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

func (s Snapshot) intVal(key string, def int) int {
	raw, ok := s.values[key]
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func (s Snapshot) boolVal(key string, def bool) bool {
	raw, ok := s.values[key]
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// Param resolves a tunable parameter, clamping a stored out-of-range value
// back into its guardrails rather than trading on it.
func (s Snapshot) Param(key string) float64 {
	spec, ok := Tunables[key]
	if !ok {
		return s.float(key, 0)
	}
	v := s.float(key, spec.Default)
	if v < spec.Min {
		return spec.Min
	}
	if v > spec.Max {
		return spec.Max
	}
	return v
}

// BotEnabled reports whether the trading loop may open new positions.
// Position monitoring and exits continue regardless.
func (s Snapshot) BotEnabled() bool { return s.boolVal("bot_enabled", true) }

// Bankroll is the current bankroll in dollars, updated transactionally as
// trades finalize.
func (s Snapshot) Bankroll() float64 { return s.float("current_bankroll", 1000) }

// SizingMode selects between "kelly" and "fixed" position sizing.
func (s Snapshot) SizingMode() string {
	raw, ok := s.values["sizing_mode"]
	if !ok || (raw != "kelly" && raw != "fixed") {
		return "kelly"
	}
	return raw
}

// FixedNotional is the dollar notional per trade when sizing_mode is fixed.
func (s Snapshot) FixedNotional() float64 { return s.float("fixed_notional", 50) }

// KellyFraction is the fractional-Kelly multiplier applied to the full
// Kelly stake.
func (s Snapshot) KellyFraction() float64 { return s.float("kelly_fraction", 0.5) }

// MinEdge is the minimum edge a scored signal must carry.
func (s Snapshot) MinEdge() float64 { return s.Param("min_edge") }

// ScoreHorizonHours is the resolution horizon beyond which the scorer
// penalizes a signal's composite score.
func (s Snapshot) ScoreHorizonHours() float64 { return s.float("score_horizon_hours", 48) }

// MaxPositionPct caps one position's entry value as a fraction of bankroll.
func (s Snapshot) MaxPositionPct() float64 { return s.Param("max_position_pct") }

// MaxTotalExposurePct caps aggregate open exposure as a fraction of bankroll.
func (s Snapshot) MaxTotalExposurePct() float64 { return s.float("max_total_exposure_pct", 0.60) }

// DailyLossLimitPct is the realized-loss fraction of bankroll that trips the
// daily circuit breaker.
func (s Snapshot) DailyLossLimitPct() float64 { return s.Param("daily_loss_limit_pct") }

// MinMarketVolume is the liquidity floor in contracts traded.
func (s Snapshot) MinMarketVolume() float64 { return s.float("min_market_volume", 1000) }

// MaxCategoryPositions limits concurrent entries per market category within
// the correlation window.
func (s Snapshot) MaxCategoryPositions() int { return s.intVal("max_category_positions", 3) }

// CategoryWindowHours is the trailing window for the correlation limit.
func (s Snapshot) CategoryWindowHours() float64 { return s.float("category_window_hours", 24) }

// BreakerTrippedOn returns the UTC date string recorded when the daily loss
// breaker latched, or empty when it has not.
func (s Snapshot) BreakerTrippedOn() string {
	raw, _ := s.values["breaker_tripped_on"]
	return raw
}

// ScannerEnabled reports whether the named scanner should run this cycle.
func (s Snapshot) ScannerEnabled(name string) bool {
	return s.boolVal(name+"_enabled", true)
}

// Service loads snapshots from the settings store.
type Service struct {
	store  domain.SettingStore
	logger *slog.Logger
}

func NewService(store domain.SettingStore, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger.With(slog.String("component", "settings"))}
}

// Load reads the full settings table into a fresh snapshot.
func (s *Service) Load(ctx context.Context) (Snapshot, error) {
	values, err := s.store.All(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("settings: load snapshot: %w", err)
	}
	return Snapshot{values: values, takenAt: time.Now().UTC()}, nil
}

// TripBreaker latches the daily loss breaker for the given UTC date.
func (s *Service) TripBreaker(ctx context.Context, day string) error {
	if err := s.store.Put(ctx, "breaker_tripped_on", day); err != nil {
		return fmt.Errorf("settings: trip breaker: %w", err)
	}
	s.logger.WarnContext(ctx, "daily loss breaker tripped", slog.String("day", day))
	return nil
}

// AdjustBankroll is used by manual control-plane corrections.
func (s *Service) AdjustBankroll(ctx context.Context, amount float64) error {
	if err := s.store.Put(ctx, "current_bankroll", strconv.FormatFloat(amount, 'f', 2, 64)); err != nil {
		return fmt.Errorf("settings: adjust bankroll: %w", err)
	}
	return nil
}

// NewSnapshot builds a snapshot from raw values. Intended for tests.
func NewSnapshot(values map[string]string) Snapshot {
	return Snapshot{values: values, takenAt: time.Now().UTC()}
}
