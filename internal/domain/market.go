package domain

import "time"

// MarketStatus is the exchange lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusOpen    MarketStatus = "open"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

// Market is a normalized view of one exchange market. All prices are
// fractions in [0,1]; the exchange client converts from integer cents at
// the boundary.
type Market struct {
	Ticker    string
	Title     string
	Category  string
	Status    MarketStatus
	YesBid    float64
	YesAsk    float64
	NoBid     float64
	NoAsk     float64
	LastPrice float64
	Volume    float64 // traded dollar volume
	CloseTime time.Time
	Result    Side // set once settled; empty otherwise
}

// Resolved reports whether the market has settled with a result.
func (m Market) Resolved() bool {
	return m.Status == MarketStatusSettled && m.Result != ""
}

// HoursToClose returns hours until the market closes, relative to now.
func (m Market) HoursToClose(now time.Time) float64 {
	if m.CloseTime.IsZero() {
		return 0
	}
	return m.CloseTime.Sub(now).Hours()
}

// SidePrice returns the last price expressed for the given side.
func (m Market) SidePrice(side Side) float64 {
	if side == SideNo {
		return 1 - m.LastPrice
	}
	return m.LastPrice
}

// PriceLevel is one resting bid level in a binary orderbook.
type PriceLevel struct {
	Price float64 // fraction in [0,1]
	Qty   int64
}

// Orderbook holds the resting YES and NO bids for one market. Best asks are
// derived: in a binary market the YES ask is the complement of the best NO
// bid and vice versa.
type Orderbook struct {
	Ticker  string
	YesBids []PriceLevel
	NoBids  []PriceLevel
}

// BestBid returns the highest resting bid for the given side, or 0.
func (b Orderbook) BestBid(side Side) float64 {
	levels := b.YesBids
	if side == SideNo {
		levels = b.NoBids
	}
	best := 0.0
	for _, lv := range levels {
		if lv.Price > best {
			best = lv.Price
		}
	}
	return best
}

// BestAsk returns the lowest offered price for the given side, derived from
// the opposite side's best bid. Returns 0 when the opposite book is empty.
func (b Orderbook) BestAsk(side Side) float64 {
	opposite := SideNo
	if side == SideNo {
		opposite = SideYes
	}
	bid := b.BestBid(opposite)
	if bid <= 0 {
		return 0
	}
	return 1 - bid
}
