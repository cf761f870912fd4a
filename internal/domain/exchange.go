package domain

import "context"

// OrderAction is the direction of an exchange order.
type OrderAction string

const (
	OrderActionBuy  OrderAction = "buy"
	OrderActionSell OrderAction = "sell"
)

// OrderType is the exchange order type.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// MMClientOrderPrefix tags client order ids created by the market-making
// scanner so its resting quotes can be found and cancelled on shutdown.
const MMClientOrderPrefix = "mm-"

// OrderRequest is an order crossing the exchange boundary. PriceCents is an
// integer 1-99: the boundary is the only place integer cents appear.
type OrderRequest struct {
	Ticker        string
	Side          Side
	Action        OrderAction
	Count         int
	PriceCents    int
	Type          OrderType
	ClientOrderID string // tags the owning scanner, e.g. "mm-..." for quotes
}

// OrderConfirmation is the exchange's acknowledgement of a submission.
type OrderConfirmation struct {
	OrderID string
	Status  string // "resting", "executed", "pending"
}

// OpenOrder is a resting order as reported by the exchange.
type OpenOrder struct {
	OrderID       string
	Ticker        string
	Side          Side
	Action        OrderAction
	Count         int
	PriceCents    int
	ClientOrderID string
}

// ExchangeHolding is a position as reported by the exchange, used to
// reconcile against the local positions table.
type ExchangeHolding struct {
	Ticker   string
	Count    int
	Exposure float64
}

// MarketReader is the read-only slice of the exchange capability handed to
// scanners. Scanners must not place orders or write storage.
type MarketReader interface {
	ActiveMarkets(ctx context.Context, limit int) ([]Market, error)
	Quote(ctx context.Context, ticker string) (Market, error)
	Orderbook(ctx context.Context, ticker string) (Orderbook, error)
	OpenOrders(ctx context.Context) ([]OpenOrder, error)
}

// Exchange is the full exchange capability consumed by the execution
// engine. Every call must carry a finite timeout via its context.
type Exchange interface {
	MarketReader
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderConfirmation, error)
	CancelOrder(ctx context.Context, orderID string) error
	Positions(ctx context.Context) ([]ExchangeHolding, error)
	Balance(ctx context.Context) (float64, error)
}
