package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
	"github.com/Nostem/Auto-Trading-Bot/internal/settings"
)

// monitorFixture wires a paper-mode engine with one open position and the
// quote the monitor will see for it.
func monitorFixture(pos domain.Position, m domain.Market) *engineFixture {
	f := newFixture(true)
	f.positions.open = []domain.Position{pos}
	f.exchange.markets = map[string]domain.Market{pos.Ticker: m}
	f.trades.openTrade = domain.TradeRecord{ID: "t1", Ticker: pos.Ticker, Strategy: pos.Strategy, Status: domain.TradeStatusOpen}
	return f
}

func quoteAt(price float64, closeIn time.Duration) domain.Market {
	return domain.Market{
		Ticker:    "FED-CUT",
		Status:    domain.MarketStatusOpen,
		LastPrice: price,
		CloseTime: time.Now().Add(closeIn),
	}
}

func defaultSnap() settings.Snapshot {
	return settings.NewSnapshot(nil)
}

func TestMonitorClosesResolvedWin(t *testing.T) {
	pos := openPosition()
	m := quoteAt(0.99, time.Hour)
	m.Status = domain.MarketStatusSettled
	m.Result = domain.SideYes
	f := monitorFixture(pos, m)

	require.NoError(t, f.engine.MonitorPositions(context.Background(), defaultSnap()))

	require.Len(t, f.store.finalized, 1)
	got := f.store.finalized[0]
	assert.InDelta(t, 1.0, got.ExitPrice, 1e-9)
	// (1.00-0.90)*10 gross minus 1.40 fees
	assert.InDelta(t, -0.4, got.NetPnL, 1e-9)
}

func TestMonitorClosesResolvedLoss(t *testing.T) {
	pos := openPosition()
	m := quoteAt(0.01, time.Hour)
	m.Status = domain.MarketStatusSettled
	m.Result = domain.SideNo
	f := monitorFixture(pos, m)

	require.NoError(t, f.engine.MonitorPositions(context.Background(), defaultSnap()))

	require.Len(t, f.store.finalized, 1)
	assert.InDelta(t, 0.0, f.store.finalized[0].ExitPrice, 1e-9)
}

func TestMonitorBondCentsStop(t *testing.T) {
	pos := openPosition()
	pos.EntryPrice = 0.92
	// 7 cents adverse clears the default 6 cent bond stop
	f := monitorFixture(pos, quoteAt(0.85, 48*time.Hour))

	require.NoError(t, f.engine.MonitorPositions(context.Background(), defaultSnap()))
	require.Len(t, f.store.finalized, 1)
	assert.InDelta(t, 0.85, f.store.finalized[0].ExitPrice, 1e-9)
}

func TestMonitorBondAdverseAlertDoesNotClose(t *testing.T) {
	pos := openPosition()
	pos.EntryPrice = 0.92
	// 4 cents adverse: past half the stop distance, below the stop itself
	f := monitorFixture(pos, quoteAt(0.88, 48*time.Hour))

	require.NoError(t, f.engine.MonitorPositions(context.Background(), defaultSnap()))
	assert.Empty(t, f.store.finalized)
	assert.Equal(t, 1, f.positions.updates)
}

func TestMonitorPercentageStop(t *testing.T) {
	pos := openPosition()
	pos.Strategy = "btc"
	pos.EntryPrice = 0.60
	// 58% adverse move clears the 50% stop threshold
	f := monitorFixture(pos, quoteAt(0.25, 48*time.Hour))

	require.NoError(t, f.engine.MonitorPositions(context.Background(), defaultSnap()))
	require.Len(t, f.store.finalized, 1)
}

func TestMonitorBTCTakeProfit(t *testing.T) {
	pos := openPosition()
	pos.Strategy = "btc"
	pos.EntryPrice = 0.40
	// 50% gain clears the 30% take-profit
	f := monitorFixture(pos, quoteAt(0.60, 48*time.Hour))

	require.NoError(t, f.engine.MonitorPositions(context.Background(), defaultSnap()))
	require.Len(t, f.store.finalized, 1)
	assert.InDelta(t, 0.60, f.store.finalized[0].ExitPrice, 1e-9)
}

func TestMonitorMMMaxHold(t *testing.T) {
	pos := openPosition()
	pos.Strategy = "market_making"
	pos.EntryPrice = 0.41
	pos.OpenedAt = time.Now().Add(-5 * time.Hour)
	f := monitorFixture(pos, quoteAt(0.41, 48*time.Hour))

	require.NoError(t, f.engine.MonitorPositions(context.Background(), defaultSnap()))
	require.Len(t, f.store.finalized, 1)
}

func TestMonitorPreExpiryExit(t *testing.T) {
	pos := openPosition()
	pos.Strategy = "btc"
	pos.EntryPrice = 0.50
	// default btc pre-expiry window is 60 seconds
	f := monitorFixture(pos, quoteAt(0.50, 30*time.Second))

	require.NoError(t, f.engine.MonitorPositions(context.Background(), defaultSnap()))
	require.Len(t, f.store.finalized, 1)
}

func TestMonitorHealthyPositionRides(t *testing.T) {
	pos := openPosition()
	pos.EntryPrice = 0.90
	f := monitorFixture(pos, quoteAt(0.91, 48*time.Hour))

	require.NoError(t, f.engine.MonitorPositions(context.Background(), defaultSnap()))
	assert.Empty(t, f.store.finalized)
	assert.Equal(t, 1, f.positions.updates)
}

func TestMonitorNoSidePriceForShortSide(t *testing.T) {
	pos := openPosition()
	pos.Side = domain.SideNo
	pos.Strategy = "btc"
	pos.EntryPrice = 0.60
	// last price 0.85 puts the NO side at 0.15, a 75% adverse move
	f := monitorFixture(pos, quoteAt(0.85, 48*time.Hour))

	require.NoError(t, f.engine.MonitorPositions(context.Background(), defaultSnap()))
	require.Len(t, f.store.finalized, 1)
	assert.InDelta(t, 0.15, f.store.finalized[0].ExitPrice, 1e-9)
}

func TestMonitorQuoteFailureSkipsPosition(t *testing.T) {
	pos := openPosition()
	f := newFixture(true)
	f.positions.open = []domain.Position{pos}
	// no quote registered for the ticker

	require.NoError(t, f.engine.MonitorPositions(context.Background(), defaultSnap()))
	assert.Empty(t, f.store.finalized)
	assert.Zero(t, f.positions.updates)
}
