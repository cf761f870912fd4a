package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

// fakeExchange records order traffic and serves canned quotes. The shared
// seq slice lets tests assert call ordering across fakes.
type fakeExchange struct {
	domain.Exchange
	markets   map[string]domain.Market
	open      []domain.OpenOrder
	placed    []domain.OrderRequest
	cancelled []string
	placeErr  error
	seq       *[]string
}

func (f *fakeExchange) Quote(ctx context.Context, ticker string) (domain.Market, error) {
	m, ok := f.markets[ticker]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeExchange) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	return f.open, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderConfirmation, error) {
	f.placed = append(f.placed, req)
	f.log("place:" + req.Ticker)
	if f.placeErr != nil {
		return domain.OrderConfirmation{}, f.placeErr
	}
	return domain.OrderConfirmation{OrderID: "ord-1", Status: "resting"}, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, orderID string) error {
	f.cancelled = append(f.cancelled, orderID)
	f.log("cancel:" + orderID)
	return nil
}

func (f *fakeExchange) log(s string) {
	if f.seq != nil {
		*f.seq = append(*f.seq, s)
	}
}

type openedPair struct {
	trade domain.TradeRecord
	pos   domain.Position
}

type fakeExecStore struct {
	opened    []openedPair
	finalized []domain.CloseTrade
	openErr   error
	finalErr  error
	seq       *[]string
}

func (f *fakeExecStore) OpenTrade(ctx context.Context, trade domain.TradeRecord, pos domain.Position) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = append(f.opened, openedPair{trade, pos})
	return nil
}

func (f *fakeExecStore) FinalizeTrade(ctx context.Context, close domain.CloseTrade) error {
	if f.seq != nil {
		*f.seq = append(*f.seq, "finalize")
	}
	if f.finalErr != nil {
		return f.finalErr
	}
	f.finalized = append(f.finalized, close)
	return nil
}

type fakeTrades struct {
	domain.TradeStore
	openTrade domain.TradeRecord
	openErr   error
}

func (f *fakeTrades) GetOpenByTicker(ctx context.Context, ticker string) (domain.TradeRecord, error) {
	if f.openErr != nil {
		return domain.TradeRecord{}, f.openErr
	}
	return f.openTrade, nil
}

type fakePositions struct {
	domain.PositionStore
	open      []domain.Position
	updates   int
	updateErr error
}

func (f *fakePositions) ListOpen(ctx context.Context) ([]domain.Position, error) {
	return f.open, nil
}

func (f *fakePositions) UpdatePrice(ctx context.Context, id string, currentPrice, unrealizedPnL float64) error {
	f.updates++
	return f.updateErr
}

type fakeEnqueuer struct {
	trades []domain.TradeRecord
	full   bool
}

func (f *fakeEnqueuer) Enqueue(trade domain.TradeRecord) bool {
	if f.full {
		return false
	}
	f.trades = append(f.trades, trade)
	return true
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type engineFixture struct {
	engine    *Engine
	exchange  *fakeExchange
	store     *fakeExecStore
	trades    *fakeTrades
	positions *fakePositions
	enqueuer  *fakeEnqueuer
}

func newFixture(paper bool) *engineFixture {
	seq := &[]string{}
	f := &engineFixture{
		exchange:  &fakeExchange{markets: map[string]domain.Market{}, seq: seq},
		store:     &fakeExecStore{seq: seq},
		trades:    &fakeTrades{openTrade: domain.TradeRecord{ID: "t1", Ticker: "FED-CUT", Strategy: "bond", Status: domain.TradeStatusOpen}},
		positions: &fakePositions{},
		enqueuer:  &fakeEnqueuer{},
	}
	f.engine = New(Config{
		Exchange:       f.exchange,
		Store:          f.store,
		Trades:         f.trades,
		Positions:      f.positions,
		Reflections:    f.enqueuer,
		PaperMode:      paper,
		FeePerContract: 0.07,
		Logger:         testLogger(),
	})
	return f
}

func approvedSignal() (domain.TradeDecision, domain.CandidateSignal) {
	return domain.TradeDecision{Approved: true, RecommendedSize: 10},
		domain.CandidateSignal{
			Strategy:          "bond",
			Ticker:            "FED-CUT",
			MarketTitle:       "Fed cuts rates?",
			Category:          "economics",
			Side:              domain.SideYes,
			EntryPrice:        0.90,
			ModelProb:         0.97,
			HoursToResolution: 36,
		}
}

func openPosition() domain.Position {
	return domain.Position{
		ID:         "p1",
		Ticker:     "FED-CUT",
		Strategy:   "bond",
		Side:       domain.SideYes,
		Size:       10,
		EntryPrice: 0.90,
		OpenedAt:   time.Now().Add(-time.Hour),
	}
}

func TestExecutePaperModeSkipsExchange(t *testing.T) {
	f := newFixture(true)
	decision, sig := approvedSignal()

	ok := f.engine.Execute(context.Background(), decision, sig)
	require.True(t, ok)

	assert.Empty(t, f.exchange.placed)
	require.Len(t, f.store.opened, 1)
	got := f.store.opened[0]
	assert.Equal(t, domain.TradeStatusOpen, got.trade.Status)
	assert.Equal(t, 10, got.trade.Size)
	assert.Equal(t, got.trade.Ticker, got.pos.Ticker)
	assert.NotEqual(t, got.trade.ID, got.pos.ID)
	require.NotNil(t, got.pos.ExpiresAt)
}

func TestExecuteLiveModePlacesOrderOnce(t *testing.T) {
	f := newFixture(false)
	decision, sig := approvedSignal()

	ok := f.engine.Execute(context.Background(), decision, sig)
	require.True(t, ok)

	require.Len(t, f.exchange.placed, 1)
	req := f.exchange.placed[0]
	assert.Equal(t, domain.OrderActionBuy, req.Action)
	assert.Equal(t, 90, req.PriceCents)
	assert.Equal(t, 10, req.Count)
	assert.Equal(t, domain.OrderTypeLimit, req.Type)
	require.Len(t, f.store.opened, 1)
}

func TestExecuteSubmissionFailureNotRetried(t *testing.T) {
	f := newFixture(false)
	f.exchange.placeErr = errors.New("gateway timeout")
	decision, sig := approvedSignal()

	ok := f.engine.Execute(context.Background(), decision, sig)
	assert.False(t, ok)
	assert.Len(t, f.exchange.placed, 1)
	assert.Empty(t, f.store.opened)
}

func TestExecuteRejectedDecisionIsNoop(t *testing.T) {
	f := newFixture(true)
	_, sig := approvedSignal()

	ok := f.engine.Execute(context.Background(), domain.Reject("liquidity"), sig)
	assert.False(t, ok)
	assert.Empty(t, f.store.opened)
}

func TestExecuteDuplicatePosition(t *testing.T) {
	f := newFixture(true)
	f.store.openErr = domain.ErrAlreadyExists
	decision, sig := approvedSignal()

	ok := f.engine.Execute(context.Background(), decision, sig)
	assert.False(t, ok)
}

func TestExecuteMarketMakingOrderPrefix(t *testing.T) {
	f := newFixture(false)
	decision, sig := approvedSignal()
	sig.Strategy = "market_making"
	sig.EntryPrice = 0.41

	require.True(t, f.engine.Execute(context.Background(), decision, sig))
	require.Len(t, f.exchange.placed, 1)
	assert.True(t, len(f.exchange.placed[0].ClientOrderID) > 3)
	assert.Equal(t, domain.MMClientOrderPrefix, f.exchange.placed[0].ClientOrderID[:3])
}

func TestClosePositionComputesNetPnL(t *testing.T) {
	f := newFixture(true)
	pos := openPosition()

	err := f.engine.ClosePosition(context.Background(), pos, 1.0, ExitReasonResolved)
	require.NoError(t, err)

	require.Len(t, f.store.finalized, 1)
	got := f.store.finalized[0]
	assert.Equal(t, "t1", got.TradeID)
	assert.Equal(t, "p1", got.PositionID)
	// gross (1.00-0.90)*10, fees 0.07*10*2, net goes negative on fees
	assert.InDelta(t, 1.0, got.GrossPnL, 1e-9)
	assert.InDelta(t, 1.4, got.Fees, 1e-9)
	assert.InDelta(t, -0.4, got.NetPnL, 1e-9)
	assert.Equal(t, domain.TradeStatusClosed, got.Status)

	require.Len(t, f.enqueuer.trades, 1)
	reflected := f.enqueuer.trades[0]
	assert.Equal(t, domain.TradeStatusClosed, reflected.Status)
	require.NotNil(t, reflected.NetPnL)
	assert.InDelta(t, -0.4, *reflected.NetPnL, 1e-9)
}

func TestClosePositionCancelsBeforeFinalize(t *testing.T) {
	f := newFixture(false)
	f.exchange.open = []domain.OpenOrder{
		{OrderID: "q1", Ticker: "FED-CUT", ClientOrderID: "mm-1"},
		{OrderID: "q2", Ticker: "OTHER", ClientOrderID: "mm-2"},
	}
	pos := openPosition()

	err := f.engine.ClosePosition(context.Background(), pos, 0.84, ExitReasonStopLoss)
	require.NoError(t, err)

	assert.Equal(t, []string{"q1"}, f.exchange.cancelled)
	require.Len(t, f.exchange.placed, 1)
	exit := f.exchange.placed[0]
	assert.Equal(t, domain.OrderActionSell, exit.Action)
	assert.Equal(t, 84, exit.PriceCents)

	// cancel, then the exit order, then the ledger write
	require.Len(t, *f.exchange.seq, 3)
	assert.Equal(t, "cancel:q1", (*f.exchange.seq)[0])
	assert.Equal(t, "place:FED-CUT", (*f.exchange.seq)[1])
	assert.Equal(t, "finalize", (*f.exchange.seq)[2])
}

func TestClosePositionResolvedNeedsNoExitOrder(t *testing.T) {
	f := newFixture(false)
	pos := openPosition()

	err := f.engine.ClosePosition(context.Background(), pos, 1.0, ExitReasonResolved)
	require.NoError(t, err)
	assert.Empty(t, f.exchange.placed)
	assert.Len(t, f.store.finalized, 1)
}

func TestClosePositionAlreadyFinalized(t *testing.T) {
	f := newFixture(true)
	f.store.finalErr = domain.ErrNotFound
	pos := openPosition()

	err := f.engine.ClosePosition(context.Background(), pos, 1.0, ExitReasonResolved)
	require.NoError(t, err)
	assert.Empty(t, f.enqueuer.trades)
}

func TestClosePositionExitOrderFailureKeepsPosition(t *testing.T) {
	f := newFixture(false)
	f.exchange.placeErr = errors.New("gateway timeout")
	pos := openPosition()

	err := f.engine.ClosePosition(context.Background(), pos, 0.84, ExitReasonStopLoss)
	require.Error(t, err)
	assert.Empty(t, f.store.finalized)
	assert.Empty(t, f.enqueuer.trades)
}

func TestClosePositionFullReflectionQueue(t *testing.T) {
	f := newFixture(true)
	f.enqueuer.full = true
	pos := openPosition()

	// a full reflection queue never fails the close
	err := f.engine.ClosePosition(context.Background(), pos, 1.0, ExitReasonResolved)
	require.NoError(t, err)
	assert.Len(t, f.store.finalized, 1)
}

func TestCancelQuoteOrders(t *testing.T) {
	f := newFixture(false)
	f.exchange.open = []domain.OpenOrder{
		{OrderID: "q1", Ticker: "A", ClientOrderID: "mm-1"},
		{OrderID: "b1", Ticker: "B", ClientOrderID: "bond-1"},
		{OrderID: "q2", Ticker: "C", ClientOrderID: "mm-2"},
	}

	err := f.engine.CancelQuoteOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q2"}, f.exchange.cancelled)
}
