package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

// fakeBus is an in-memory SignalBus carrying only the stream side.
type fakeBus struct {
	entries []domain.StreamMessage
}

func (f *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error { return nil }

func (f *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (f *fakeBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	id := fmt.Sprintf("%d-0", len(f.entries)+1)
	f.entries = append(f.entries, domain.StreamMessage{ID: id, Payload: payload})
	return nil
}

func (f *fakeBus) StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	var out []domain.StreamMessage
	for _, e := range f.entries {
		if e.ID > lastID {
			out = append(out, e)
		}
	}
	return out, nil
}

func appendHeadline(t *testing.T, bus *fakeBus, h domain.ClassifiedHeadline) {
	t.Helper()
	payload, err := json.Marshal(h)
	require.NoError(t, err)
	require.NoError(t, bus.StreamAppend(context.Background(), domain.StreamAdvisory, payload))
}

func headline(published time.Time) domain.ClassifiedHeadline {
	return domain.ClassifiedHeadline{
		Headline:   "Fed signals surprise rate cut",
		Source:     "example-feed",
		Published:  published,
		Relevant:   true,
		Categories: []string{"Economics"},
		Direction:  domain.AdvisoryYesUp,
		Confidence: 0.85,
		Reasoning:  "rate cut makes the yes outcome more likely",
	}
}

func newNewsScanner(t *testing.T, bus *fakeBus, base time.Time) *NewsScanner {
	t.Helper()
	s := NewNewsScanner(bus, 200, testLogger())
	s.now = func() time.Time { return base }
	return s
}

func TestNewsScanProposesMatchingCategory(t *testing.T) {
	base := time.Now()
	bus := &fakeBus{}
	appendHeadline(t, bus, headline(base.Add(-10*time.Minute)))

	econ := closeIn(base, "FED-CUT", 24)
	econ.YesAsk = 0.50
	econ.NoAsk = 0.55
	politics := closeIn(base, "ELECTION", 24)
	politics.Category = "politics"
	politics.YesAsk = 0.50
	politics.NoAsk = 0.55

	s := newNewsScanner(t, bus, base)
	signals, err := s.Scan(context.Background(), &fakeReader{markets: []domain.Market{econ, politics}}, nil)
	require.NoError(t, err)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, "news", sig.Strategy)
	assert.Equal(t, "FED-CUT", sig.Ticker)
	assert.Equal(t, domain.SideYes, sig.Side)
	assert.InDelta(t, 0.50, sig.EntryPrice, 1e-9)
	assert.InDelta(t, 0.50+newsEdgeScale*0.85, sig.ModelProb, 1e-9)
	assert.Equal(t, "Fed signals surprise rate cut", sig.Headline)
	assert.InDelta(t, 0.85, sig.Confidence, 1e-9)
}

func TestNewsScanCursorAdvances(t *testing.T) {
	base := time.Now()
	bus := &fakeBus{}
	appendHeadline(t, bus, headline(base.Add(-10*time.Minute)))

	econ := closeIn(base, "FED-CUT", 24)
	econ.YesAsk = 0.50
	econ.NoAsk = 0.55
	reader := &fakeReader{markets: []domain.Market{econ}}

	s := newNewsScanner(t, bus, base)
	first, err := s.Scan(context.Background(), reader, nil)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := s.Scan(context.Background(), reader, nil)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestNewsScanNoUpDirection(t *testing.T) {
	base := time.Now()
	bus := &fakeBus{}
	h := headline(base.Add(-10 * time.Minute))
	h.Direction = domain.AdvisoryNoUp
	appendHeadline(t, bus, h)

	econ := closeIn(base, "FED-CUT", 24)
	econ.YesAsk = 0.50
	econ.NoAsk = 0.55

	s := newNewsScanner(t, bus, base)
	signals, err := s.Scan(context.Background(), &fakeReader{markets: []domain.Market{econ}}, nil)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SideNo, signals[0].Side)
	assert.InDelta(t, 0.55, signals[0].EntryPrice, 1e-9)
}

func TestNewsScanFiltersHeadlines(t *testing.T) {
	base := time.Now()
	bus := &fakeBus{}

	low := headline(base.Add(-10 * time.Minute))
	low.Confidence = 0.40
	appendHeadline(t, bus, low)

	neutral := headline(base.Add(-10 * time.Minute))
	neutral.Direction = domain.AdvisoryNeutral
	appendHeadline(t, bus, neutral)

	stale := headline(base.Add(-3 * time.Hour))
	appendHeadline(t, bus, stale)

	irrelevant := headline(base.Add(-10 * time.Minute))
	irrelevant.Relevant = false
	appendHeadline(t, bus, irrelevant)

	bus.entries = append(bus.entries, domain.StreamMessage{ID: "9-0", Payload: []byte("not json")})

	econ := closeIn(base, "FED-CUT", 24)
	econ.YesAsk = 0.50
	reader := &fakeReader{markets: []domain.Market{econ}}

	s := newNewsScanner(t, bus, base)
	signals, err := s.Scan(context.Background(), reader, nil)
	require.NoError(t, err)
	assert.Empty(t, signals)

	// nothing actionable, so the market list is never fetched
	assert.Zero(t, reader.marketCalls)
}

func TestNewsScanEmptyStream(t *testing.T) {
	base := time.Now()
	reader := &fakeReader{}

	s := newNewsScanner(t, &fakeBus{}, base)
	signals, err := s.Scan(context.Background(), reader, nil)
	require.NoError(t, err)
	assert.Empty(t, signals)
	assert.Zero(t, reader.marketCalls)
}

func TestNewsScanHonorsPerHeadlineCap(t *testing.T) {
	base := time.Now()
	bus := &fakeBus{}
	appendHeadline(t, bus, headline(base.Add(-10*time.Minute)))

	var markets []domain.Market
	for i := 0; i < 5; i++ {
		m := closeIn(base, fmt.Sprintf("ECON-%d", i), 24)
		m.YesAsk = 0.50
		markets = append(markets, m)
	}

	s := newNewsScanner(t, bus, base)
	signals, err := s.Scan(context.Background(), &fakeReader{markets: markets}, nil)
	require.NoError(t, err)
	assert.Len(t, signals, newsMaxPerHeadline)
}
