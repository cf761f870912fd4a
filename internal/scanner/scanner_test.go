package scanner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
	"github.com/Nostem/Auto-Trading-Bot/internal/settings"
)

// fakeReader is an in-memory MarketReader shared by the scanner tests.
type fakeReader struct {
	markets     []domain.Market
	books       map[string]domain.Orderbook
	orders      []domain.OpenOrder
	marketsErr  error
	marketCalls int
}

func (f *fakeReader) ActiveMarkets(ctx context.Context, limit int) ([]domain.Market, error) {
	f.marketCalls++
	if f.marketsErr != nil {
		return nil, f.marketsErr
	}
	return f.markets, nil
}

func (f *fakeReader) Quote(ctx context.Context, ticker string) (domain.Market, error) {
	for _, m := range f.markets {
		if m.Ticker == ticker {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (f *fakeReader) Orderbook(ctx context.Context, ticker string) (domain.Orderbook, error) {
	book, ok := f.books[ticker]
	if !ok {
		return domain.Orderbook{}, errors.New("orderbook unavailable")
	}
	return book, nil
}

func (f *fakeReader) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	return f.orders, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubScanner returns canned signals for registry tests.
type stubScanner struct {
	name    string
	signals []domain.CandidateSignal
	err     error
}

func (s *stubScanner) Name() string { return s.name }

func (s *stubScanner) Scan(ctx context.Context, ex domain.MarketReader, held map[string]bool) ([]domain.CandidateSignal, error) {
	return s.signals, s.err
}

func TestRegistryGetAndList(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(&stubScanner{name: "bond"})
	r.Register(&stubScanner{name: "btc"})

	got, err := r.Get("bond")
	require.NoError(t, err)
	assert.Equal(t, "bond", got.Name())

	_, err = r.Get("weather")
	assert.Error(t, err)

	assert.Equal(t, []string{"bond", "btc"}, r.List())
}

func TestRegistryScanAllSkipsDisabled(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(&stubScanner{name: "bond", signals: []domain.CandidateSignal{{Ticker: "A", Strategy: "bond"}}})
	r.Register(&stubScanner{name: "btc", signals: []domain.CandidateSignal{{Ticker: "B", Strategy: "btc"}}})

	snap := settings.NewSnapshot(map[string]string{"btc_enabled": "false"})
	out := r.ScanAll(context.Background(), &fakeReader{}, nil, snap)

	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0].Ticker)
}

func TestRegistryScanAllDegradesOnFailure(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(&stubScanner{name: "bond", err: errors.New("exchange down")})
	r.Register(&stubScanner{name: "news", signals: []domain.CandidateSignal{{Ticker: "N", Strategy: "news"}}})

	out := r.ScanAll(context.Background(), &fakeReader{}, nil, settings.NewSnapshot(nil))

	require.Len(t, out, 1)
	assert.Equal(t, "N", out[0].Ticker)
}

func TestAnnualizeFloorsShortHorizons(t *testing.T) {
	assert.InDelta(t, 0.1*(8760/24.0), annualize(0.1, 24, 1), 1e-9)
	assert.InDelta(t, 0.1*8760, annualize(0.1, 0.001, 1), 1e-9)
	assert.InDelta(t, 0.1*(8760/0.25), annualize(0.1, 0.1, 0.25), 1e-9)
}

// closeIn builds a market closing the given hours after base.
func closeIn(base time.Time, ticker string, hours float64) domain.Market {
	return domain.Market{
		Ticker:    ticker,
		Title:     ticker,
		Category:  "economics",
		Status:    domain.MarketStatusOpen,
		Volume:    50000,
		CloseTime: base.Add(time.Duration(hours * float64(time.Hour))),
	}
}
