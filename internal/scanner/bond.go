package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Nostem/Auto-Trading-Bot/internal/config"
	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

// BondScanner hunts for near-certain outcomes trading at a deep-favorite
// price on either side. The payoff profile resembles a short-dated bond:
// small coupon, high probability, known maturity.
type BondScanner struct {
	cfg        config.BondScannerConfig
	maxMarkets int
	logger     *slog.Logger
	now        func() time.Time
}

// NewBondScanner returns a bond scanner over the given config.
func NewBondScanner(cfg config.BondScannerConfig, maxMarkets int, logger *slog.Logger) *BondScanner {
	return &BondScanner{
		cfg:        cfg,
		maxMarkets: maxMarkets,
		logger:     logger.With("component", "scanner", "scanner", "bond"),
		now:        time.Now,
	}
}

func (b *BondScanner) Name() string { return "bond" }

// Scan walks the active markets and proposes the favored side of any market
// where one side's implied price clears the minimum and our fixed model
// probability still leaves positive edge.
func (b *BondScanner) Scan(ctx context.Context, ex domain.MarketReader, held map[string]bool) ([]domain.CandidateSignal, error) {
	markets, err := ex.ActiveMarkets(ctx, b.maxMarkets)
	if err != nil {
		return nil, fmt.Errorf("scanner: bond: list markets: %w", err)
	}

	now := b.now()
	maxHours := float64(b.cfg.MaxDaysOut) * 24

	var signals []domain.CandidateSignal
	for _, m := range markets {
		if held[m.Ticker] {
			continue
		}
		if m.Volume < b.cfg.MinVolume {
			continue
		}
		hours := m.HoursToClose(now)
		if hours <= 0 || hours > maxHours {
			continue
		}

		book, err := ex.Orderbook(ctx, m.Ticker)
		if err != nil {
			b.logger.WarnContext(ctx, "orderbook fetch failed, skipping market",
				"ticker", m.Ticker, "error", err)
			continue
		}

		side, entry, ok := b.pickSide(book)
		if !ok {
			continue
		}
		if b.cfg.ModelProb-entry < 0 {
			continue
		}

		expectedReturn := (1 - entry) / entry
		signals = append(signals, domain.CandidateSignal{
			Strategy:          b.Name(),
			Ticker:            m.Ticker,
			MarketTitle:       m.Title,
			Category:          m.Category,
			Side:              side,
			ProposedSize:      b.cfg.ProposedContracts,
			EntryPrice:        entry,
			ModelProb:         b.cfg.ModelProb,
			MarketVolume:      m.Volume,
			ExpectedReturnPct: expectedReturn,
			HoursToResolution: hours,
			AnnualizedReturn:  annualize(expectedReturn, hours, 1),
			Confidence:        b.cfg.Confidence,
			Rationale: fmt.Sprintf("deep favorite: %s priced %.2f with %.1fh to close",
				side, entry, hours),
		})
	}
	return signals, nil
}

// pickSide chooses the favored side from the resting asks. A cheap ask on
// one side implies the opposite side is the favorite, priced at the
// complement. An empty book yields no pick.
func (b *BondScanner) pickSide(book domain.Orderbook) (domain.Side, float64, bool) {
	yesAsk := book.BestAsk(domain.SideYes)
	noAsk := book.BestAsk(domain.SideNo)
	complement := 1 - b.cfg.MinYesPrice

	switch {
	case noAsk > 0 && noAsk <= complement:
		return domain.SideYes, 1 - noAsk, true
	case yesAsk >= b.cfg.MinYesPrice:
		return domain.SideYes, yesAsk, true
	case yesAsk > 0 && yesAsk <= complement:
		return domain.SideNo, 1 - yesAsk, true
	case noAsk >= b.cfg.MinYesPrice:
		return domain.SideNo, noAsk, true
	}
	return "", 0, false
}
