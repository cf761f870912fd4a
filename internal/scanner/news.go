package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

const (
	newsMinConfidence   = 0.70
	newsMaxAge          = 2 * time.Hour
	newsMaxPerHeadline  = 3
	newsEdgeScale       = 0.08
	newsProposedSize    = 5
	newsStreamBatchSize = 50
)

// NewsScanner turns classified headlines from the advisory stream into
// candidate signals on matching-category markets. It is purely advisory
// input: without stream entries the scan degrades to empty, and every
// candidate still passes the risk gate like any other.
type NewsScanner struct {
	bus        domain.SignalBus
	maxMarkets int
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	lastID string
}

// NewNewsScanner returns a news scanner reading from the advisory stream.
func NewNewsScanner(bus domain.SignalBus, maxMarkets int, logger *slog.Logger) *NewsScanner {
	return &NewsScanner{
		bus:        bus,
		maxMarkets: maxMarkets,
		logger:     logger.With("component", "scanner", "scanner", "news"),
		now:        time.Now,
		lastID:     "0",
	}
}

func (s *NewsScanner) Name() string { return "news" }

// Scan drains new advisory entries and proposes the headline's direction on
// open markets in the affected categories. The stream cursor only advances
// after a successful pass, so a failed cycle re-reads the same entries.
func (s *NewsScanner) Scan(ctx context.Context, ex domain.MarketReader, held map[string]bool) ([]domain.CandidateSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.bus.StreamRead(ctx, domain.StreamAdvisory, s.lastID, newsStreamBatchSize)
	if err != nil {
		return nil, fmt.Errorf("scanner: news: read advisory stream: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	headlines := s.actionable(ctx, msgs)
	if len(headlines) == 0 {
		s.lastID = msgs[len(msgs)-1].ID
		return nil, nil
	}

	markets, err := ex.ActiveMarkets(ctx, s.maxMarkets)
	if err != nil {
		return nil, fmt.Errorf("scanner: news: list markets: %w", err)
	}

	now := s.now()
	var signals []domain.CandidateSignal
	for _, h := range headlines {
		matched := 0
		for _, m := range markets {
			if matched >= newsMaxPerHeadline {
				break
			}
			if held[m.Ticker] || !categoryMatch(m.Category, h.Categories) {
				continue
			}
			hours := m.HoursToClose(now)
			if hours <= 0 {
				continue
			}

			side := domain.SideYes
			entry := m.YesAsk
			if h.Direction == domain.AdvisoryNoUp {
				side, entry = domain.SideNo, m.NoAsk
			}
			if entry <= 0 || entry >= 1 {
				continue
			}

			modelProb := entry + newsEdgeScale*h.Confidence
			if modelProb > 0.99 {
				modelProb = 0.99
			}
			expectedReturn := (1 - entry) / entry
			signals = append(signals, domain.CandidateSignal{
				Strategy:          s.Name(),
				Ticker:            m.Ticker,
				MarketTitle:       m.Title,
				Category:          m.Category,
				Side:              side,
				ProposedSize:      newsProposedSize,
				EntryPrice:        entry,
				ModelProb:         modelProb,
				MarketVolume:      m.Volume,
				ExpectedReturnPct: expectedReturn,
				HoursToResolution: hours,
				AnnualizedReturn:  annualize(expectedReturn, hours, 1),
				Confidence:        h.Confidence,
				Rationale:         h.Reasoning,
				Headline:          h.Headline,
			})
			matched++
		}
	}

	s.lastID = msgs[len(msgs)-1].ID
	return signals, nil
}

// actionable decodes stream payloads and keeps only fresh, relevant,
// directional headlines above the confidence bar.
func (s *NewsScanner) actionable(ctx context.Context, msgs []domain.StreamMessage) []domain.ClassifiedHeadline {
	cutoff := s.now().Add(-newsMaxAge)
	var out []domain.ClassifiedHeadline
	for _, msg := range msgs {
		var h domain.ClassifiedHeadline
		if err := json.Unmarshal(msg.Payload, &h); err != nil {
			s.logger.DebugContext(ctx, "malformed advisory entry, skipping", "id", msg.ID, "error", err)
			continue
		}
		if !h.Relevant || h.Direction == domain.AdvisoryNeutral || h.Direction == "" {
			continue
		}
		if h.Confidence < newsMinConfidence {
			continue
		}
		if !h.Published.IsZero() && h.Published.Before(cutoff) {
			continue
		}
		out = append(out, h)
	}
	return out
}

func categoryMatch(category string, affected []string) bool {
	for _, a := range affected {
		if strings.EqualFold(category, a) {
			return true
		}
	}
	return false
}
