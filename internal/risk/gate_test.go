package risk

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
	"github.com/Nostem/Auto-Trading-Bot/internal/settings"
)

type fakeTradeStore struct {
	domain.TradeStore
	realizedPnL float64
}

func (f *fakeTradeStore) RealizedPnLSince(ctx context.Context, since time.Time) (float64, error) {
	return f.realizedPnL, nil
}

type fakeSettingStore struct {
	domain.SettingStore
	puts map[string]string
}

func (f *fakeSettingStore) Put(ctx context.Context, key, value string) error {
	if f.puts == nil {
		f.puts = make(map[string]string)
	}
	f.puts[key] = value
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGate(pnl float64) (*Gate, *fakeSettingStore) {
	store := &fakeSettingStore{}
	svc := settings.NewService(store, testLogger())
	return New(&fakeTradeStore{realizedPnL: pnl}, svc, testLogger()), store
}

func baseSnapshot(extra map[string]string) settings.Snapshot {
	values := map[string]string{
		"max_position_pct":       "0.15",
		"max_total_exposure_pct": "0.60",
		"daily_loss_limit_pct":   "0.03",
		"min_market_volume":      "1000",
		"max_category_positions": "3",
		"category_window_hours":  "24",
		"kelly_fraction":         "0.5",
		"sizing_mode":            "kelly",
	}
	for k, v := range extra {
		values[k] = v
	}
	return settings.NewSnapshot(values)
}

func candidate() domain.CandidateSignal {
	return domain.CandidateSignal{
		Strategy:     "bond",
		Ticker:       "BOND-TEST",
		Category:     "economics",
		Side:         domain.SideYes,
		EntryPrice:   0.06,
		ModelProb:    0.97,
		MarketVolume: 50000,
	}
}

func TestKellyContracts(t *testing.T) {
	// floor(0.5 * ((0.97 - 0.06) / 0.94) * 5000 / 0.06)
	assert.Equal(t, 40336, KellyContracts(0.97, 0.06, 5000, 0.5))
}

func TestKellyContractsNoEdge(t *testing.T) {
	assert.Equal(t, 0, KellyContracts(0.50, 0.60, 5000, 0.5))
	assert.Equal(t, 0, KellyContracts(0.60, 0.60, 5000, 0.5))
	assert.Equal(t, 0, KellyContracts(0.97, 0, 5000, 0.5))
}

func TestCheckTradeKellyClampedByPositionCeiling(t *testing.T) {
	gate, _ := newGate(0)

	decision := gate.CheckTrade(context.Background(), candidate(), 5000, nil, baseSnapshot(nil))

	require.True(t, decision.Approved, decision.Reason)
	// Raw Kelly is 40336 contracts; the 15% position ceiling caps notional
	// at 750, i.e. floor(750 / 0.06) = 12500 contracts.
	assert.Equal(t, 12500, decision.RecommendedSize)
	assert.InDelta(t, 0.5, decision.SizingFraction, 1e-9)
}

func TestCheckTradeApprovedSizeRespectsPositionCeiling(t *testing.T) {
	gate, _ := newGate(0)

	decision := gate.CheckTrade(context.Background(), candidate(), 5000, nil, baseSnapshot(nil))
	require.True(t, decision.Approved)

	maxNotional := 0.15 * 5000
	assert.LessOrEqual(t, float64(decision.RecommendedSize)*0.06, maxNotional+0.06)
}

func TestCheckTradeLiquidityFloorRejects(t *testing.T) {
	gate, _ := newGate(0)

	sig := candidate()
	sig.MarketVolume = 500

	decision := gate.CheckTrade(context.Background(), sig, 5000, nil, baseSnapshot(nil))
	assert.False(t, decision.Approved)
	assert.Contains(t, decision.Reason, "volume")
	assert.Zero(t, decision.RecommendedSize)
}

func TestCheckTradeExposureCeilingRejects(t *testing.T) {
	gate, _ := newGate(0)

	// 0.60 * 5000 = 3000 ceiling, already consumed by open positions.
	open := []domain.Position{
		{Ticker: "A", Category: "other", Size: 3000, EntryPrice: 1.0, OpenedAt: time.Now()},
	}

	sig := candidate()
	sig.ProposedSize = 100

	decision := gate.CheckTrade(context.Background(), sig, 5000, open, baseSnapshot(nil))
	assert.False(t, decision.Approved)
	assert.Contains(t, decision.Reason, "exposure")
}

func TestCheckTradeCorrelationLimitRejects(t *testing.T) {
	gate, _ := newGate(0)

	now := time.Now()
	open := []domain.Position{
		{Ticker: "A", Category: "economics", Size: 10, EntryPrice: 0.5, OpenedAt: now.Add(-1 * time.Hour)},
		{Ticker: "B", Category: "economics", Size: 10, EntryPrice: 0.5, OpenedAt: now.Add(-2 * time.Hour)},
		{Ticker: "C", Category: "economics", Size: 10, EntryPrice: 0.5, OpenedAt: now.Add(-3 * time.Hour)},
	}

	decision := gate.CheckTrade(context.Background(), candidate(), 5000, open, baseSnapshot(nil))
	assert.False(t, decision.Approved)
	assert.Contains(t, decision.Reason, "category")
}

func TestCheckTradeCorrelationIgnoresPositionsOutsideWindow(t *testing.T) {
	gate, _ := newGate(0)

	stale := time.Now().Add(-48 * time.Hour)
	open := []domain.Position{
		{Ticker: "A", Category: "economics", Size: 10, EntryPrice: 0.5, OpenedAt: stale},
		{Ticker: "B", Category: "economics", Size: 10, EntryPrice: 0.5, OpenedAt: stale},
		{Ticker: "C", Category: "economics", Size: 10, EntryPrice: 0.5, OpenedAt: stale},
	}

	decision := gate.CheckTrade(context.Background(), candidate(), 5000, open, baseSnapshot(nil))
	assert.True(t, decision.Approved, decision.Reason)
}

func TestCheckTradeDailyLossBreakerTripsAndLatches(t *testing.T) {
	// Realized loss of 200 breaches the 0.03 * 5000 = 150 limit.
	gate, store := newGate(-200)

	decision := gate.CheckTrade(context.Background(), candidate(), 5000, nil, baseSnapshot(nil))
	require.False(t, decision.Approved)
	assert.Contains(t, decision.Reason, "loss")

	// The breaker latched by writing today's date.
	today := time.Now().UTC().Format("2006-01-02")
	assert.Equal(t, today, store.puts["breaker_tripped_on"])

	// A snapshot carrying the latch keeps rejecting even after PnL recovers.
	gate2, _ := newGate(0)
	snap := baseSnapshot(map[string]string{"breaker_tripped_on": today})
	decision2 := gate2.CheckTrade(context.Background(), candidate(), 5000, nil, snap)
	assert.False(t, decision2.Approved)
	assert.Contains(t, decision2.Reason, "breaker")
}

func TestCheckTradeBreakerClearsOnNewDay(t *testing.T) {
	gate, _ := newGate(0)

	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	snap := baseSnapshot(map[string]string{"breaker_tripped_on": yesterday})

	decision := gate.CheckTrade(context.Background(), candidate(), 5000, nil, snap)
	assert.True(t, decision.Approved, decision.Reason)
}

func TestCheckTradeFixedSizingMode(t *testing.T) {
	gate, _ := newGate(0)

	snap := baseSnapshot(map[string]string{
		"sizing_mode":    "fixed",
		"fixed_notional": "60",
	})

	decision := gate.CheckTrade(context.Background(), candidate(), 5000, nil, snap)
	require.True(t, decision.Approved, decision.Reason)
	// floor(60 / 0.06) contracts, ignoring Kelly entirely.
	assert.Equal(t, 1000, decision.RecommendedSize)
	assert.Zero(t, decision.SizingFraction)
}

func TestCheckTradeHonorsScannerProposal(t *testing.T) {
	gate, _ := newGate(0)

	sig := candidate()
	sig.ProposedSize = 10

	decision := gate.CheckTrade(context.Background(), sig, 5000, nil, baseSnapshot(nil))
	require.True(t, decision.Approved, decision.Reason)
	assert.Equal(t, 10, decision.RecommendedSize)
}

func TestCheckTradeZeroSizeRejects(t *testing.T) {
	gate, _ := newGate(0)

	sig := candidate()
	sig.ModelProb = 0.05 // negative edge -> Kelly size 0

	decision := gate.CheckTrade(context.Background(), sig, 5000, nil, baseSnapshot(nil))
	assert.False(t, decision.Approved)
	assert.Contains(t, decision.Reason, "size")
}
