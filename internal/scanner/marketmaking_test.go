package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nostem/Auto-Trading-Bot/internal/config"
	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

func mmConfig() config.MMScannerConfig {
	return config.MMScannerConfig{
		Enabled:       true,
		MinSpread:     0.03,
		Confidence:    0.70,
		MinHoursLeft:  4,
		QuoteContract: 10,
		MinVolume:     5000,
	}
}

func newMMScanner(t *testing.T, base time.Time) *MMScanner {
	t.Helper()
	s := NewMMScanner(mmConfig(), 200, testLogger())
	s.now = func() time.Time { return base }
	return s
}

func TestMMScanQuotesBothSides(t *testing.T) {
	base := time.Now()
	s := newMMScanner(t, base)
	reader := &fakeReader{
		markets: []domain.Market{closeIn(base, "WIDE", 12)},
		// asks derive to 0.55/0.60, leaving a 0.15 spread
		books: map[string]domain.Orderbook{"WIDE": book(0.40, 0.45)},
	}

	signals, err := s.Scan(context.Background(), reader, nil)
	require.NoError(t, err)
	require.Len(t, signals, 2)

	yes, no := signals[0], signals[1]
	assert.Equal(t, domain.SideYes, yes.Side)
	assert.InDelta(t, 0.41, yes.EntryPrice, 1e-9)
	assert.InDelta(t, 0.42, yes.ModelProb, 1e-9)

	assert.Equal(t, domain.SideNo, no.Side)
	assert.InDelta(t, 0.46, no.EntryPrice, 1e-9)
	assert.InDelta(t, 0.47, no.ModelProb, 1e-9)

	for _, sig := range signals {
		assert.Equal(t, "market_making", sig.Strategy)
		assert.Equal(t, 10, sig.ProposedSize)
		assert.InDelta(t, 0.075, sig.ExpectedReturnPct, 1e-9)
		assert.InDelta(t, 0.70, sig.Confidence, 1e-9)
	}
}

func TestMMScanSkipsTightSpreads(t *testing.T) {
	base := time.Now()
	s := newMMScanner(t, base)
	reader := &fakeReader{
		markets: []domain.Market{closeIn(base, "TIGHT", 12)},
		// asks derive to 0.51/0.51, a 0.02 spread below the minimum
		books: map[string]domain.Orderbook{"TIGHT": book(0.49, 0.49)},
	}

	signals, err := s.Scan(context.Background(), reader, nil)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestMMScanSkipsMarketsWithRestingQuotes(t *testing.T) {
	base := time.Now()
	s := newMMScanner(t, base)
	reader := &fakeReader{
		markets: []domain.Market{closeIn(base, "QUOTED", 12), closeIn(base, "FRESH", 12)},
		books: map[string]domain.Orderbook{
			"QUOTED": book(0.40, 0.45),
			"FRESH":  book(0.40, 0.45),
		},
		orders: []domain.OpenOrder{
			{OrderID: "1", Ticker: "QUOTED", ClientOrderID: "mm-abc123"},
			{OrderID: "2", Ticker: "FRESH", ClientOrderID: "bond-entry"},
		},
	}

	signals, err := s.Scan(context.Background(), reader, nil)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	for _, sig := range signals {
		assert.Equal(t, "FRESH", sig.Ticker)
	}
}

func TestMMScanFilters(t *testing.T) {
	base := time.Now()
	s := newMMScanner(t, base)

	soon := closeIn(base, "SOON", 2)
	thin := closeIn(base, "THIN", 12)
	thin.Volume = 100
	heldMkt := closeIn(base, "HELD", 12)

	reader := &fakeReader{
		markets: []domain.Market{soon, thin, heldMkt},
		books: map[string]domain.Orderbook{
			"SOON": book(0.40, 0.45),
			"THIN": book(0.40, 0.45),
			"HELD": book(0.40, 0.45),
		},
	}

	signals, err := s.Scan(context.Background(), reader, map[string]bool{"HELD": true})
	require.NoError(t, err)
	assert.Empty(t, signals)
}
