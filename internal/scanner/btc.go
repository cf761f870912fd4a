package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Nostem/Auto-Trading-Bot/internal/config"
	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

// SpotQuoter supplies a spot price for a coin id.
type SpotQuoter interface {
	SpotPrice(ctx context.Context, coinID string) (float64, error)
}

// BTCScanner prices short-horizon bitcoin strike markets with a zero-drift
// lognormal model over the spot price and trades the side the market
// misprices. Edge thresholds are asymmetric: YES entries demand more edge
// than NO entries because the model's tail estimates skew optimistic.
type BTCScanner struct {
	cfg        config.BTCScannerConfig
	spot       SpotQuoter
	maxMarkets int
	logger     *slog.Logger
	now        func() time.Time
}

// NewBTCScanner returns a bitcoin strike scanner over the given config and
// spot feed.
func NewBTCScanner(cfg config.BTCScannerConfig, spot SpotQuoter, maxMarkets int, logger *slog.Logger) *BTCScanner {
	return &BTCScanner{
		cfg:        cfg,
		spot:       spot,
		maxMarkets: maxMarkets,
		logger:     logger.With("component", "scanner", "scanner", "btc"),
		now:        time.Now,
	}
}

func (s *BTCScanner) Name() string { return "btc" }

const (
	btcMinHours    = 0.1
	btcMinVolume   = 1
	btcMinYesEntry = 0.70
	btcMinNoEntry  = 0.25
	btcHoursFloor  = 0.25
	btcProbFloor   = 0.05
	btcProbCeiling = 0.95
	btcMinStrike   = 1_000
	btcMaxStrike   = 2_000_000
)

// Scan compares the model probability against the quoted asks for every
// market in the configured series and proposes the underpriced side.
func (s *BTCScanner) Scan(ctx context.Context, ex domain.MarketReader, held map[string]bool) ([]domain.CandidateSignal, error) {
	spot, err := s.spot.SpotPrice(ctx, s.cfg.CoinGeckoID)
	if err != nil {
		return nil, fmt.Errorf("scanner: btc: spot price: %w", err)
	}

	markets, err := ex.ActiveMarkets(ctx, s.maxMarkets)
	if err != nil {
		return nil, fmt.Errorf("scanner: btc: list markets: %w", err)
	}

	now := s.now()
	var signals []domain.CandidateSignal
	for _, m := range markets {
		if !strings.HasPrefix(m.Ticker, s.cfg.SeriesTicker) {
			continue
		}
		if held[m.Ticker] {
			continue
		}
		if m.Volume < btcMinVolume {
			continue
		}
		hours := m.HoursToClose(now)
		if hours < btcMinHours || hours > s.cfg.MaxHours {
			continue
		}

		strike, ok := parseStrike(m.Title, m.Ticker)
		if !ok {
			s.logger.DebugContext(ctx, "no strike parsed, skipping market", "ticker", m.Ticker)
			continue
		}
		if m.YesAsk <= 0 || m.NoAsk <= 0 {
			continue
		}

		prob := probabilityAboveStrike(spot, strike, s.cfg.DailyVol, hours)
		yesEdge := prob - m.YesAsk
		noEdge := (1 - prob) - m.NoAsk

		var (
			side      domain.Side
			entry     float64
			modelProb float64
		)
		switch {
		case noEdge >= s.cfg.MinEdge && (noEdge >= yesEdge || yesEdge < s.cfg.MinYesEdge):
			side, entry, modelProb = domain.SideNo, m.NoAsk, 1-prob
			if entry < btcMinNoEntry {
				continue
			}
		case yesEdge >= s.cfg.MinYesEdge:
			side, entry, modelProb = domain.SideYes, m.YesAsk, prob
			if entry < btcMinYesEntry {
				continue
			}
		default:
			continue
		}

		expectedReturn := (1 - entry) / entry
		signals = append(signals, domain.CandidateSignal{
			Strategy:          s.Name(),
			Ticker:            m.Ticker,
			MarketTitle:       m.Title,
			Category:          m.Category,
			Side:              side,
			ProposedSize:      s.cfg.ProposedContracts,
			EntryPrice:        entry,
			ModelProb:         modelProb,
			MarketVolume:      m.Volume,
			ExpectedReturnPct: expectedReturn,
			HoursToResolution: hours,
			AnnualizedReturn:  annualize(expectedReturn, hours, btcHoursFloor),
			Confidence:        s.cfg.Confidence,
			Rationale: fmt.Sprintf("model P(spot %.0f > strike %.0f in %.1fh) = %.2f vs %s ask %.2f",
				spot, strike, hours, prob, side, entry),
		})
	}
	return signals, nil
}

var (
	titleStrikeRe  = regexp.MustCompile(`\$([0-9][0-9,]*(?:\.[0-9]+)?)`)
	tickerStrikeRe = regexp.MustCompile(`-[BT]([0-9]{4,7}(?:\.[0-9]{1,2})?)$`)
)

// parseStrike extracts the strike price from a market title like
// "Bitcoin above $115,000 at 5pm EDT?" or, failing that, from a
// ticker suffix like "KXBTCD-25AUG2917-B115999.99". Values outside a
// sane price range are rejected.
func parseStrike(title, ticker string) (float64, bool) {
	if m := titleStrikeRe.FindStringSubmatch(title); m != nil {
		raw := strings.ReplaceAll(m[1], ",", "")
		if v, err := strconv.ParseFloat(raw, 64); err == nil && saneStrike(v) {
			return v, true
		}
	}
	if m := tickerStrikeRe.FindStringSubmatch(ticker); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && saneStrike(v) {
			return v, true
		}
	}
	return 0, false
}

func saneStrike(v float64) bool {
	return v >= btcMinStrike && v <= btcMaxStrike
}

// probabilityAboveStrike is a zero-drift lognormal estimate of the chance
// the spot finishes above the strike after the given horizon. Output is
// clipped away from 0 and 1 so a single stale quote cannot produce a
// certainty signal.
func probabilityAboveStrike(spot, strike, dailyVol, hours float64) float64 {
	if spot <= 0 || strike <= 0 || dailyVol <= 0 || hours <= 0 {
		return 0.5
	}
	sigma := dailyVol * math.Sqrt(hours/24)
	d2 := math.Log(spot/strike) / sigma
	prob := 0.5 * math.Erfc(-d2/math.Sqrt2)
	return math.Min(btcProbCeiling, math.Max(btcProbFloor, prob))
}
