// Package executor turns approved trade decisions into exchange orders and
// manages the open-position lifecycle through to finalized ledger entries.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
	"github.com/Nostem/Auto-Trading-Bot/internal/metrics"
	"github.com/Nostem/Auto-Trading-Bot/internal/notify"
)

// Exit reasons recorded on close and exported for dashboards.
const (
	ExitReasonResolved   = "resolved"
	ExitReasonPreExpiry  = "pre_expiry"
	ExitReasonStopLoss   = "stop_loss"
	ExitReasonTakeProfit = "take_profit"
	ExitReasonMaxHold    = "max_hold"
	ExitReasonManual     = "manual"
)

// ReflectionEnqueuer accepts a finalized trade for post-mortem analysis.
// Enqueue must never block; it reports false when the request was dropped.
type ReflectionEnqueuer interface {
	Enqueue(trade domain.TradeRecord) bool
}

// Config wires an Engine. Bus, Notifier and Reflections may be nil; the
// engine degrades to logging only.
type Config struct {
	Exchange       domain.Exchange
	Store          domain.ExecutionStore
	Trades         domain.TradeStore
	Positions      domain.PositionStore
	Bus            domain.SignalBus
	Notifier       *notify.Notifier
	Reflections    ReflectionEnqueuer
	PaperMode      bool
	FeePerContract float64
	Logger         *slog.Logger
}

// Engine submits orders and keeps the trades and positions tables in sync
// with what the exchange confirmed. Order submissions are sent exactly
// once; a failed submission is logged and dropped, never retried, because
// the duplicate-order risk outweighs the missed fill.
type Engine struct {
	exchange    domain.Exchange
	store       domain.ExecutionStore
	trades      domain.TradeStore
	positions   domain.PositionStore
	bus         domain.SignalBus
	notifier    *notify.Notifier
	reflections ReflectionEnqueuer
	paperMode   bool
	fee         float64
	logger      *slog.Logger
	now         func() time.Time
}

// New returns an Engine over the given dependencies.
func New(cfg Config) *Engine {
	return &Engine{
		exchange:    cfg.Exchange,
		store:       cfg.Store,
		trades:      cfg.Trades,
		positions:   cfg.Positions,
		bus:         cfg.Bus,
		notifier:    cfg.Notifier,
		reflections: cfg.Reflections,
		paperMode:   cfg.PaperMode,
		fee:         cfg.FeePerContract,
		logger:      cfg.Logger.With("component", "executor"),
		now:         time.Now,
	}
}

// Execute submits the approved order and records the trade and position in
// one transaction. It reports whether the trade was opened.
func (e *Engine) Execute(ctx context.Context, decision domain.TradeDecision, sig domain.CandidateSignal) bool {
	if !decision.Approved || decision.RecommendedSize < 1 {
		return false
	}

	priceCents := int(math.Round(sig.EntryPrice * 100))
	if priceCents < 1 || priceCents > 99 {
		e.logger.WarnContext(ctx, "entry price out of range, dropping signal",
			"ticker", sig.Ticker, "entry_price", sig.EntryPrice)
		return false
	}

	orderID := "paper-" + uuid.NewString()
	if e.paperMode {
		e.logger.InfoContext(ctx, "paper trade, order not sent",
			"ticker", sig.Ticker, "side", sig.Side, "count", decision.RecommendedSize,
			"price_cents", priceCents, "order_id", orderID)
	} else {
		conf, err := e.exchange.PlaceOrder(ctx, domain.OrderRequest{
			Ticker:        sig.Ticker,
			Side:          sig.Side,
			Action:        domain.OrderActionBuy,
			Count:         decision.RecommendedSize,
			PriceCents:    priceCents,
			Type:          domain.OrderTypeLimit,
			ClientOrderID: clientOrderID(sig.Strategy),
		})
		if err != nil {
			metrics.OrdersFailed.Inc()
			e.logger.ErrorContext(ctx, "order submission failed, not retrying",
				"ticker", sig.Ticker, "side", sig.Side, "error", err)
			return false
		}
		orderID = conf.OrderID
	}

	now := e.now()
	expires := now.Add(time.Duration(sig.HoursToResolution * float64(time.Hour)))
	trade := domain.TradeRecord{
		ID:          uuid.NewString(),
		Ticker:      sig.Ticker,
		MarketTitle: sig.MarketTitle,
		Strategy:    sig.Strategy,
		Side:        sig.Side,
		Size:        decision.RecommendedSize,
		EntryPrice:  sig.EntryPrice,
		Status:      domain.TradeStatusOpen,
		Rationale:   sig.Rationale,
		CreatedAt:   now,
	}
	pos := domain.Position{
		ID:           uuid.NewString(),
		Ticker:       sig.Ticker,
		MarketTitle:  sig.MarketTitle,
		Strategy:     sig.Strategy,
		Category:     sig.Category,
		Side:         sig.Side,
		Size:         decision.RecommendedSize,
		EntryPrice:   sig.EntryPrice,
		CurrentPrice: sig.EntryPrice,
		OpenedAt:     now,
		ExpiresAt:    &expires,
	}

	if err := e.store.OpenTrade(ctx, trade, pos); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			e.logger.WarnContext(ctx, "position already open for market, trade not recorded",
				"ticker", sig.Ticker, "order_id", orderID)
		} else {
			e.logger.ErrorContext(ctx, "order placed but ledger write failed, reconcile manually",
				"ticker", sig.Ticker, "order_id", orderID, "error", err)
		}
		return false
	}

	metrics.TradesOpened.WithLabelValues(sig.Strategy).Inc()
	e.logger.InfoContext(ctx, "trade opened",
		"ticker", sig.Ticker, "strategy", sig.Strategy, "side", sig.Side,
		"size", decision.RecommendedSize, "entry_price", sig.EntryPrice,
		"order_id", orderID, "paper", e.paperMode)
	e.notify(ctx, notify.EventTradeOpened, "Trade opened",
		fmt.Sprintf("%s %s x%d @ %.2f (%s)", sig.Ticker, sig.Side, decision.RecommendedSize, sig.EntryPrice, sig.Strategy))
	e.publishEvent(ctx, "trade_opened", map[string]any{
		"ticker": sig.Ticker, "strategy": sig.Strategy, "side": sig.Side,
		"size": decision.RecommendedSize, "entry_price": sig.EntryPrice,
	})
	return true
}

// ClosePosition cancels any resting orders on the market, submits the exit
// order when one is needed, and finalizes the ledger entry net of fees.
// Cancel precedes finalize so a late fill cannot reopen exposure on a
// closed trade. A trade that was already finalized is a no-op.
func (e *Engine) ClosePosition(ctx context.Context, pos domain.Position, exitPrice float64, reason string) error {
	trade, err := e.trades.GetOpenByTicker(ctx, pos.Ticker)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.logger.InfoContext(ctx, "no open trade for position, already finalized",
				"ticker", pos.Ticker)
			return nil
		}
		return fmt.Errorf("executor: open trade for %s: %w", pos.Ticker, err)
	}

	if !e.paperMode {
		if err := e.cancelRestingOrders(ctx, pos.Ticker); err != nil {
			return fmt.Errorf("executor: cancel resting orders for %s: %w", pos.Ticker, err)
		}
		if reason != ExitReasonResolved {
			if err := e.submitExit(ctx, pos, exitPrice); err != nil {
				metrics.OrdersFailed.Inc()
				return fmt.Errorf("executor: exit order for %s: %w", pos.Ticker, err)
			}
		}
	}

	gross := (exitPrice - pos.EntryPrice) * float64(pos.Size)
	fees := e.fee * float64(pos.Size) * 2
	net := gross - fees
	resolvedAt := e.now()

	err = e.store.FinalizeTrade(ctx, domain.CloseTrade{
		TradeID:    trade.ID,
		PositionID: pos.ID,
		ExitPrice:  exitPrice,
		GrossPnL:   gross,
		Fees:       fees,
		NetPnL:     net,
		Status:     domain.TradeStatusClosed,
		ResolvedAt: resolvedAt,
	})
	if errors.Is(err, domain.ErrNotFound) {
		e.logger.InfoContext(ctx, "trade already finalized", "trade_id", trade.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("executor: finalize trade %s: %w", trade.ID, err)
	}

	metrics.TradesClosed.WithLabelValues(pos.Strategy, reason).Inc()
	e.logger.InfoContext(ctx, "position closed",
		"ticker", pos.Ticker, "strategy", pos.Strategy, "reason", reason,
		"exit_price", exitPrice, "net_pnl", net)

	trade.Status = domain.TradeStatusClosed
	trade.ExitPrice = &exitPrice
	trade.GrossPnL = &gross
	trade.Fees = &fees
	trade.NetPnL = &net
	trade.ResolvedAt = &resolvedAt
	if e.reflections != nil && !e.reflections.Enqueue(trade) {
		e.logger.WarnContext(ctx, "reflection queue full, dropping request", "trade_id", trade.ID)
	}

	e.notify(ctx, notify.EventPositionClosed, "Position closed",
		fmt.Sprintf("%s %s closed (%s), net PnL %.2f", pos.Ticker, pos.Side, reason, net))
	e.publishEvent(ctx, "position_closed", map[string]any{
		"ticker": pos.Ticker, "strategy": pos.Strategy, "reason": reason,
		"exit_price": exitPrice, "net_pnl": net,
	})
	return nil
}

// CancelQuoteOrders cancels every resting market-making quote. Called on
// shutdown so no unattended quotes survive the process.
func (e *Engine) CancelQuoteOrders(ctx context.Context) error {
	if e.paperMode {
		return nil
	}
	orders, err := e.exchange.OpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("executor: list open orders: %w", err)
	}
	var failed int
	for _, o := range orders {
		if !strings.HasPrefix(o.ClientOrderID, domain.MMClientOrderPrefix) {
			continue
		}
		if err := e.exchange.CancelOrder(ctx, o.OrderID); err != nil {
			failed++
			e.logger.WarnContext(ctx, "quote cancel failed",
				"order_id", o.OrderID, "ticker", o.Ticker, "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("executor: %d quote cancels failed", failed)
	}
	return nil
}

func (e *Engine) cancelRestingOrders(ctx context.Context, ticker string) error {
	orders, err := e.exchange.OpenOrders(ctx)
	if err != nil {
		return err
	}
	for _, o := range orders {
		if o.Ticker != ticker {
			continue
		}
		if err := e.exchange.CancelOrder(ctx, o.OrderID); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) submitExit(ctx context.Context, pos domain.Position, exitPrice float64) error {
	priceCents := int(math.Round(exitPrice * 100))
	if priceCents < 1 {
		priceCents = 1
	}
	if priceCents > 99 {
		priceCents = 99
	}
	_, err := e.exchange.PlaceOrder(ctx, domain.OrderRequest{
		Ticker:        pos.Ticker,
		Side:          pos.Side,
		Action:        domain.OrderActionSell,
		Count:         pos.Size,
		PriceCents:    priceCents,
		Type:          domain.OrderTypeLimit,
		ClientOrderID: "exit-" + uuid.NewString(),
	})
	return err
}

func (e *Engine) notify(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.WarnContext(ctx, "notification failed", "event", event, "error", err)
	}
}

func (e *Engine) publishEvent(ctx context.Context, kind string, fields map[string]any) {
	if e.bus == nil {
		return
	}
	fields["type"] = kind
	fields["at"] = e.now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(fields)
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, domain.ChannelEvents, payload); err != nil {
		e.logger.DebugContext(ctx, "event publish failed", "type", kind, "error", err)
	}
}

func clientOrderID(strategy string) string {
	prefix := strategy + "-"
	if strategy == "market_making" {
		prefix = domain.MMClientOrderPrefix
	}
	return prefix + uuid.NewString()
}
