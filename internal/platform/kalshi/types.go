package kalshi

import (
	"time"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// KalshiMarket represents a market as returned by the Kalshi REST API.
// Prices are integer cents (1-99).
type KalshiMarket struct {
	Ticker         string  `json:"ticker"`
	EventTicker    string  `json:"event_ticker"`
	Title          string  `json:"title"`
	Subtitle       string  `json:"subtitle"`
	Status         string  `json:"status"` // "open", "closed", "settled"
	YesBid         int64   `json:"yes_bid"`
	YesAsk         int64   `json:"yes_ask"`
	NoBid          int64   `json:"no_bid"`
	NoAsk          int64   `json:"no_ask"`
	LastPrice      int64   `json:"last_price"`
	Volume         int64   `json:"volume"`
	Volume24H      int64   `json:"volume_24h"`
	OpenInterest   int64   `json:"open_interest"`
	Category       string  `json:"category"`
	StrikeType     string  `json:"strike_type"`
	FloorStrike    float64 `json:"floor_strike"`
	CapStrike      float64 `json:"cap_strike"`
	Result         string  `json:"result"` // "yes", "no", "" (unsettled)
	CanCloseEarly  bool    `json:"can_close_early"`
	OpenTime       string  `json:"open_time"`
	CloseTime      string  `json:"close_time"`
	ExpirationTime string  `json:"expiration_time"`
}

// toDomain converts the DTO to the normalized domain representation: cent
// prices become fractions and the close time is parsed.
func (m KalshiMarket) toDomain() domain.Market {
	closeTime, _ := time.Parse(time.RFC3339, m.CloseTime)
	return domain.Market{
		Ticker:    m.Ticker,
		Title:     m.Title,
		Category:  m.Category,
		Status:    domain.MarketStatus(m.Status),
		YesBid:    float64(m.YesBid) / 100,
		YesAsk:    float64(m.YesAsk) / 100,
		NoBid:     float64(m.NoBid) / 100,
		NoAsk:     float64(m.NoAsk) / 100,
		LastPrice: float64(m.LastPrice) / 100,
		Volume:    float64(m.Volume),
		CloseTime: closeTime,
		Result:    domain.Side(m.Result),
	}
}

// KalshiOrderbook represents the orderbook for a Kalshi market.
type KalshiOrderbook struct {
	Yes [][]int64 `json:"yes"` // [price_cents, quantity] pairs
	No  [][]int64 `json:"no"`
}

func levelsToDomain(levels [][]int64) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(levels))
	for _, lv := range levels {
		if len(lv) < 2 {
			continue
		}
		out = append(out, domain.PriceLevel{
			Price: float64(lv[0]) / 100,
			Qty:   lv[1],
		})
	}
	return out
}

func (b KalshiOrderbook) toDomain(ticker string) domain.Orderbook {
	return domain.Orderbook{
		Ticker:  ticker,
		YesBids: levelsToDomain(b.Yes),
		NoBids:  levelsToDomain(b.No),
	}
}

// KalshiOrder represents an order to be placed on the Kalshi exchange.
type KalshiOrder struct {
	Ticker        string `json:"ticker"`
	Action        string `json:"action"` // "buy" or "sell"
	Side          string `json:"side"`   // "yes" or "no"
	Type          string `json:"type"`   // "market" or "limit"
	Count         int64  `json:"count"`
	YesPrice      *int64 `json:"yes_price,omitempty"` // limit price in cents (1-99)
	NoPrice       *int64 `json:"no_price,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// KalshiOrderResponse represents the API response after placing an order.
type KalshiOrderResponse struct {
	Order struct {
		OrderID        string `json:"order_id"`
		Ticker         string `json:"ticker"`
		Status         string `json:"status"` // "resting", "canceled", "executed", "pending"
		Action         string `json:"action"`
		Side           string `json:"side"`
		Type           string `json:"type"`
		YesPrice       int64  `json:"yes_price"`
		NoPrice        int64  `json:"no_price"`
		RemainingCount int64  `json:"remaining_count"`
		ClientOrderID  string `json:"client_order_id"`
	} `json:"order"`
}

// KalshiOpenOrder is a resting order as returned by GET /portfolio/orders.
type KalshiOpenOrder struct {
	OrderID        string `json:"order_id"`
	Ticker         string `json:"ticker"`
	Side           string `json:"side"`
	Action         string `json:"action"`
	YesPrice       int64  `json:"yes_price"`
	NoPrice        int64  `json:"no_price"`
	RemainingCount int64  `json:"remaining_count"`
	ClientOrderID  string `json:"client_order_id"`
}

func (o KalshiOpenOrder) toDomain() domain.OpenOrder {
	price := o.YesPrice
	if domain.Side(o.Side) == domain.SideNo {
		price = o.NoPrice
	}
	return domain.OpenOrder{
		OrderID:       o.OrderID,
		Ticker:        o.Ticker,
		Side:          domain.Side(o.Side),
		Action:        domain.OrderAction(o.Action),
		Count:         int(o.RemainingCount),
		PriceCents:    int(price),
		ClientOrderID: o.ClientOrderID,
	}
}

// KalshiPosition is a holding as returned by GET /portfolio/positions.
type KalshiPosition struct {
	Ticker         string `json:"ticker"`
	Position       int64  `json:"position"` // signed contract count
	MarketExposure int64  `json:"market_exposure"`
	RealizedPnL    int64  `json:"realized_pnl"`
	TotalTraded    int64  `json:"total_traded"`
}

func (p KalshiPosition) toDomain() domain.ExchangeHolding {
	return domain.ExchangeHolding{
		Ticker:   p.Ticker,
		Count:    int(p.Position),
		Exposure: float64(p.MarketExposure) / 100,
	}
}

// KalshiBalance is the response of GET /portfolio/balance.
type KalshiBalance struct {
	Balance int64 `json:"balance"` // cents
}

// KalshiErrorResponse represents a Kalshi API error response.
type KalshiErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
