package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nostem/Auto-Trading-Bot/internal/config"
	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

type fakeSpot struct {
	price float64
	err   error
}

func (f *fakeSpot) SpotPrice(ctx context.Context, coinID string) (float64, error) {
	return f.price, f.err
}

func btcConfig() config.BTCScannerConfig {
	return config.BTCScannerConfig{
		Enabled:           true,
		SeriesTicker:      "KXBTC",
		DailyVol:          0.03,
		Confidence:        0.60,
		MinEdge:           0.025,
		MinYesEdge:        0.05,
		MaxHours:          8,
		CoinGeckoID:       "bitcoin",
		ProposedContracts: 10,
	}
}

func newBTCScanner(t *testing.T, spot float64, base time.Time) *BTCScanner {
	t.Helper()
	s := NewBTCScanner(btcConfig(), &fakeSpot{price: spot}, 200, testLogger())
	s.now = func() time.Time { return base }
	return s
}

func btcMarket(base time.Time, ticker, title string, hours, yesAsk, noAsk float64) domain.Market {
	m := closeIn(base, ticker, hours)
	m.Title = title
	m.Volume = 500
	m.YesAsk = yesAsk
	m.NoAsk = noAsk
	return m
}

func TestParseStrike(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		ticker string
		want   float64
		wantOK bool
	}{
		{"title with commas", "Bitcoin above $115,000 at 5pm EDT?", "KXBTC-X", 115000, true},
		{"title with decimals", "BTC above $99,999.99 today?", "KXBTC-X", 99999.99, true},
		{"dollar amount out of range falls back to ticker", "Will BTC move $5 today?", "KXBTCD-25AUG2917-B117249.99", 117249.99, true},
		{"ticker threshold suffix", "", "KXBTCD-25AUG2912-T118000", 118000, true},
		{"nothing parseable", "Bitcoin up or down?", "KXBTCD-25AUG29", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseStrike(tt.title, tt.ticker)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestProbabilityAboveStrike(t *testing.T) {
	// 50/50 at the money
	assert.InDelta(t, 0.5, probabilityAboveStrike(100000, 100000, 0.03, 6), 1e-9)

	// monotonic in spot
	low := probabilityAboveStrike(99000, 100000, 0.03, 6)
	high := probabilityAboveStrike(101000, 100000, 0.03, 6)
	assert.Less(t, low, 0.5)
	assert.Greater(t, high, 0.5)
	assert.Greater(t, high, low)

	// clipped tails
	assert.InDelta(t, 0.95, probabilityAboveStrike(150000, 100000, 0.03, 6), 1e-9)
	assert.InDelta(t, 0.05, probabilityAboveStrike(60000, 100000, 0.03, 6), 1e-9)

	// degenerate inputs fall back to even odds
	assert.InDelta(t, 0.5, probabilityAboveStrike(0, 100000, 0.03, 6), 1e-9)
	assert.InDelta(t, 0.5, probabilityAboveStrike(100000, 100000, 0, 6), 1e-9)
}

func TestBTCScanBuysUnderpricedYes(t *testing.T) {
	base := time.Now()
	s := newBTCScanner(t, 110000, base)
	// spot well above strike: model clips to 0.95, yes ask 0.80 leaves 0.15 edge
	reader := &fakeReader{markets: []domain.Market{
		btcMarket(base, "KXBTCD-25AUG2917-B100000", "Bitcoin above $100,000?", 4, 0.80, 0.25),
	}}

	signals, err := s.Scan(context.Background(), reader, nil)
	require.NoError(t, err)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, "btc", sig.Strategy)
	assert.Equal(t, domain.SideYes, sig.Side)
	assert.InDelta(t, 0.80, sig.EntryPrice, 1e-9)
	assert.InDelta(t, 0.95, sig.ModelProb, 1e-9)
	assert.Equal(t, 10, sig.ProposedSize)
	assert.InDelta(t, 0.60, sig.Confidence, 1e-9)
}

func TestBTCScanBuysUnderpricedNo(t *testing.T) {
	base := time.Now()
	s := newBTCScanner(t, 100000, base)
	// spot well below strike: model clips to 0.05, no ask 0.60 leaves 0.35 edge
	reader := &fakeReader{markets: []domain.Market{
		btcMarket(base, "KXBTCD-25AUG2917-B110000", "Bitcoin above $110,000?", 4, 0.35, 0.60),
	}}

	signals, err := s.Scan(context.Background(), reader, nil)
	require.NoError(t, err)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, domain.SideNo, sig.Side)
	assert.InDelta(t, 0.60, sig.EntryPrice, 1e-9)
	assert.InDelta(t, 0.95, sig.ModelProb, 1e-9)
}

func TestBTCScanEntryFloors(t *testing.T) {
	base := time.Now()
	s := newBTCScanner(t, 110000, base)
	// plenty of yes edge but the 0.60 entry is below the 0.70 floor
	reader := &fakeReader{markets: []domain.Market{
		btcMarket(base, "KXBTCD-25AUG2917-B100000", "Bitcoin above $100,000?", 4, 0.60, 0.45),
	}}

	signals, err := s.Scan(context.Background(), reader, nil)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestBTCScanFilters(t *testing.T) {
	base := time.Now()
	s := newBTCScanner(t, 110000, base)

	otherSeries := btcMarket(base, "KXETH-25AUG2917-B4000", "Ethereum above $4,000?", 4, 0.80, 0.25)
	tooFar := btcMarket(base, "KXBTCD-FAR-B100000", "Bitcoin above $100,000?", 12, 0.80, 0.25)
	held := btcMarket(base, "KXBTCD-HELD-B100000", "Bitcoin above $100,000?", 4, 0.80, 0.25)

	reader := &fakeReader{markets: []domain.Market{otherSeries, tooFar, held}}
	signals, err := s.Scan(context.Background(), reader, map[string]bool{"KXBTCD-HELD-B100000": true})
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestBTCScanSpotFailureAborts(t *testing.T) {
	s := NewBTCScanner(btcConfig(), &fakeSpot{err: errors.New("feed down")}, 200, testLogger())

	_, err := s.Scan(context.Background(), &fakeReader{}, nil)
	assert.Error(t, err)
}
