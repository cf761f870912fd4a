package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Nostem/Auto-Trading-Bot/internal/config"
	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

// quoteImprovement is the tick added above the best bid on each side.
const quoteImprovement = 0.01

// MMScanner captures wide spreads on liquid markets by quoting both sides
// one tick inside the book. It emits a paired YES and NO signal per market;
// each leg rides through the risk gate on its own.
type MMScanner struct {
	cfg        config.MMScannerConfig
	maxMarkets int
	logger     *slog.Logger
	now        func() time.Time
}

// NewMMScanner returns a market-making scanner over the given config.
func NewMMScanner(cfg config.MMScannerConfig, maxMarkets int, logger *slog.Logger) *MMScanner {
	return &MMScanner{
		cfg:        cfg,
		maxMarkets: maxMarkets,
		logger:     logger.With("component", "scanner", "scanner", "market_making"),
		now:        time.Now,
	}
}

func (s *MMScanner) Name() string { return "market_making" }

// Scan proposes paired quotes on markets whose combined ask prices leave at
// least the configured spread. Markets already holding a position or a
// resting quote of ours are skipped.
func (s *MMScanner) Scan(ctx context.Context, ex domain.MarketReader, held map[string]bool) ([]domain.CandidateSignal, error) {
	markets, err := ex.ActiveMarkets(ctx, s.maxMarkets)
	if err != nil {
		return nil, fmt.Errorf("scanner: market_making: list markets: %w", err)
	}

	quoting, err := s.quotedTickers(ctx, ex)
	if err != nil {
		return nil, fmt.Errorf("scanner: market_making: open orders: %w", err)
	}

	now := s.now()
	var signals []domain.CandidateSignal
	for _, m := range markets {
		if held[m.Ticker] || quoting[m.Ticker] {
			continue
		}
		if m.Volume < s.cfg.MinVolume {
			continue
		}
		hours := m.HoursToClose(now)
		if hours < s.cfg.MinHoursLeft {
			continue
		}

		book, err := ex.Orderbook(ctx, m.Ticker)
		if err != nil {
			s.logger.WarnContext(ctx, "orderbook fetch failed, skipping market",
				"ticker", m.Ticker, "error", err)
			continue
		}

		yesBid := book.BestBid(domain.SideYes)
		noBid := book.BestBid(domain.SideNo)
		yesAsk := book.BestAsk(domain.SideYes)
		noAsk := book.BestAsk(domain.SideNo)
		if yesBid <= 0 || noBid <= 0 || yesAsk <= 0 || noAsk <= 0 {
			continue
		}

		spread := yesAsk + noAsk - 1
		if spread < s.cfg.MinSpread {
			continue
		}

		yesQuote := yesBid + quoteImprovement
		noQuote := noBid + quoteImprovement
		if yesQuote >= yesAsk || noQuote >= noAsk {
			continue
		}

		expectedReturn := spread / 2
		for _, leg := range []struct {
			side  domain.Side
			quote float64
		}{
			{domain.SideYes, yesQuote},
			{domain.SideNo, noQuote},
		} {
			signals = append(signals, domain.CandidateSignal{
				Strategy:          s.Name(),
				Ticker:            m.Ticker,
				MarketTitle:       m.Title,
				Category:          m.Category,
				Side:              leg.side,
				ProposedSize:      s.cfg.QuoteContract,
				EntryPrice:        leg.quote,
				ModelProb:         leg.quote + quoteImprovement,
				MarketVolume:      m.Volume,
				ExpectedReturnPct: expectedReturn,
				HoursToResolution: hours,
				AnnualizedReturn:  annualize(expectedReturn, hours, 1),
				Confidence:        s.cfg.Confidence,
				Rationale: fmt.Sprintf("spread capture: %.2f combined spread, quoting %s at %.2f",
					spread, leg.side, leg.quote),
			})
		}
	}
	return signals, nil
}

// quotedTickers returns the tickers where one of our quotes is resting.
func (s *MMScanner) quotedTickers(ctx context.Context, ex domain.MarketReader) (map[string]bool, error) {
	orders, err := ex.OpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	quoting := make(map[string]bool)
	for _, o := range orders {
		if strings.HasPrefix(o.ClientOrderID, domain.MMClientOrderPrefix) {
			quoting[o.Ticker] = true
		}
	}
	return quoting, nil
}
