package domain

// Side is the contract side of a binary market.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// CandidateSignal is a proposed trade produced by a scanner. It lives for a
// single scan cycle and is never persisted; only the TradeRecord created at
// execution time survives.
//
// Prices and probabilities are fractions in [0,1]. Integer cents exist only
// at the exchange boundary.
type CandidateSignal struct {
	Strategy          string  // scanner name, e.g. "bond"
	Ticker            string  // market id
	MarketTitle       string
	Category          string
	Side              Side
	ProposedSize      int     // contracts; the risk gate may resize
	EntryPrice        float64 // market-implied probability for Side
	ModelProb         float64 // our estimated true probability for Side
	MarketVolume      float64 // traded volume, for the liquidity floor
	ExpectedReturnPct float64 // (1 - entry) / entry if the side wins
	HoursToResolution float64
	AnnualizedReturn  float64
	Confidence        float64 // 0..1
	Rationale         string
	Headline          string // set by the news scanner, empty otherwise

	// Score is filled in by the scorer during ranking.
	Score float64
}

// Edge is the model-estimated probability minus the market-implied price.
func (s CandidateSignal) Edge() float64 {
	return s.ModelProb - s.EntryPrice
}

// Key identifies a signal for (market, side) deduplication.
func (s CandidateSignal) Key() string {
	return s.Ticker + ":" + string(s.Side)
}
