package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"odin/domain/funds"
	"odin/domain/orderbook"
)

type captureSink struct {
	statuses []OrderStatusEvent
	trades   []TradeEvent
	finished []string
}

func (s *captureSink) OrderStatus(ev OrderStatusEvent) { s.statuses = append(s.statuses, ev) }
func (s *captureSink) Trade(ev TradeEvent)             { s.trades = append(s.trades, ev) }
func (s *captureSink) AuctionFinished(pair string)     { s.finished = append(s.finished, pair) }

func testConfig() Config {
	return Config{
		ID:             "ALOT/USDC",
		Base:           "ALOT",
		Quote:          "USDC",
		BaseDecimals:   2,
		QuoteDecimals:  2,
		TickSize:       5,
		MinTradeAmount: 10,
		MaxTradeAmount: 1_000_000,
		MakerFeeBps:    25,
		TakerFeeBps:    45,
	}
}

func newTestPair(t *testing.T) (*TradePair, *funds.Ledger, *captureSink) {
	t.Helper()
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	led := funds.NewLedger()
	led.RegisterPair(cfg.ID, cfg.Base, cfg.Quote)
	for _, trader := range []string{"alice", "bob", "carol"} {
		led.Deposit(trader, cfg.Base, 1_000_000)
		led.Deposit(trader, cfg.Quote, 1_000_000)
	}

	sink := &captureSink{}
	return NewTradePair(cfg, led, sink, zap.NewNop()), led, sink
}

func limit(id, trader string, side orderbook.Side, price, qty int64) SubmitReq {
	return SubmitReq{
		ID:     id,
		Trader: trader,
		Side:   side,
		Type:   orderbook.Limit,
		TIF:    orderbook.GTC,
		Price:  price,
		Qty:    qty,
	}
}

func TestSubmitRestsWithoutOpposite(t *testing.T) {
	tp, led, sink := newTestPair(t)

	o, err := tp.Submit(limit("b1", "alice", orderbook.Buy, 500, 100))
	require.NoError(t, err)
	assert.Equal(t, orderbook.New, o.Status)
	assert.Equal(t, int64(500), tp.Book(orderbook.Buy).BestPrice())
	assert.NotNil(t, tp.Order("b1"))

	free, held := led.Balance("alice", "USDC")
	assert.Equal(t, int64(999_500), free)
	assert.Equal(t, int64(500), held)
	assert.Len(t, sink.statuses, 1)
	assert.Empty(t, sink.trades)
}

func TestSubmitValidation(t *testing.T) {
	tp, _, _ := newTestPair(t)

	cases := []struct {
		name string
		req  SubmitReq
	}{
		{"missing id", limit("", "alice", orderbook.Buy, 500, 100)},
		{"missing trader", limit("x1", "", orderbook.Buy, 500, 100)},
		{"zero qty", limit("x2", "alice", orderbook.Buy, 500, 0)},
		{"zero price", limit("x3", "alice", orderbook.Buy, 0, 100)},
		{"off tick", limit("x4", "alice", orderbook.Buy, 503, 100)},
		{"below min amount", limit("x5", "alice", orderbook.Buy, 5, 100)},
		{"above max amount", limit("x6", "alice", orderbook.Buy, 500_000, 1_000)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tp.Submit(tc.req)
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}

	// Market order with nothing on the other side has no reference price.
	_, err := tp.Submit(SubmitReq{ID: "m1", Trader: "alice", Side: orderbook.Buy, Type: orderbook.Market, Qty: 100})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = tp.Submit(limit("b1", "alice", orderbook.Buy, 500, 100))
	require.NoError(t, err)
	_, err = tp.Submit(limit("b1", "alice", orderbook.Buy, 505, 100))
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestPriceTimePriority(t *testing.T) {
	tp, led, sink := newTestPair(t)

	_, err := tp.Submit(limit("s1", "bob", orderbook.Sell, 500, 50))
	require.NoError(t, err)
	_, err = tp.Submit(limit("s2", "carol", orderbook.Sell, 500, 50))
	require.NoError(t, err)
	_, err = tp.Submit(limit("s3", "bob", orderbook.Sell, 505, 100))
	require.NoError(t, err)

	taker, err := tp.Submit(limit("b1", "alice", orderbook.Buy, 505, 120))
	require.NoError(t, err)
	assert.Equal(t, orderbook.Filled, taker.Status)
	assert.Equal(t, int64(120), taker.Filled)
	assert.Nil(t, tp.Order("b1"))

	require.Len(t, sink.trades, 3)
	assert.Equal(t, "s1", sink.trades[0].MakerOrder)
	assert.Equal(t, int64(500), sink.trades[0].Price)
	assert.Equal(t, int64(50), sink.trades[0].Qty)
	assert.Equal(t, "s2", sink.trades[1].MakerOrder)
	assert.Equal(t, int64(500), sink.trades[1].Price)
	assert.Equal(t, "s3", sink.trades[2].MakerOrder)
	assert.Equal(t, int64(505), sink.trades[2].Price)
	assert.Equal(t, int64(20), sink.trades[2].Qty)

	// s3 keeps the ask with its remainder.
	assert.Equal(t, int64(505), tp.Book(orderbook.Sell).BestPrice())
	qty, err := tp.Book(orderbook.Sell).LevelQty(505)
	require.NoError(t, err)
	assert.Equal(t, int64(80), qty)
	s3 := tp.Order("s3")
	require.NotNil(t, s3)
	assert.Equal(t, orderbook.Partial, s3.Status)

	// Taker paid 250+250+101 in quote; the reservation surplus came back.
	free, held := led.Balance("alice", "USDC")
	assert.Equal(t, int64(999_399), free)
	assert.Zero(t, held)
	free, _ = led.Balance("alice", "ALOT")
	assert.Equal(t, int64(1_000_120), free)

	// bob sold 70 in total and still backs s3's remaining 80.
	free, held = led.Balance("bob", "ALOT")
	assert.Equal(t, int64(999_850), free)
	assert.Equal(t, int64(80), held)
}

func TestPartialTakerRests(t *testing.T) {
	tp, led, _ := newTestPair(t)

	_, err := tp.Submit(limit("s1", "bob", orderbook.Sell, 500, 80))
	require.NoError(t, err)

	o, err := tp.Submit(limit("b1", "alice", orderbook.Buy, 500, 200))
	require.NoError(t, err)
	assert.Equal(t, orderbook.Partial, o.Status)
	assert.Equal(t, int64(80), o.Filled)

	assert.Equal(t, int64(500), tp.Book(orderbook.Buy).BestPrice())
	qty, err := tp.Book(orderbook.Buy).LevelQty(500)
	require.NoError(t, err)
	assert.Equal(t, int64(120), qty)

	// Hold shrinks to exactly the quote value of the resting remainder.
	_, held := led.Balance("alice", "USDC")
	assert.Equal(t, int64(600), held)
	assert.Equal(t, int64(600), o.Hold)
}

func TestFillOrKill(t *testing.T) {
	tp, _, sink := newTestPair(t)

	_, err := tp.Submit(limit("s1", "bob", orderbook.Sell, 500, 50))
	require.NoError(t, err)
	_, err = tp.Submit(limit("s2", "carol", orderbook.Sell, 505, 30))
	require.NoError(t, err)

	fok := limit("b1", "alice", orderbook.Buy, 505, 100)
	fok.TIF = orderbook.FOK
	_, err = tp.Submit(fok)
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.Empty(t, sink.trades)
	qty, err := tp.Book(orderbook.Sell).LevelQty(500)
	require.NoError(t, err)
	assert.Equal(t, int64(50), qty)

	fok = limit("b2", "alice", orderbook.Buy, 505, 80)
	fok.TIF = orderbook.FOK
	o, err := tp.Submit(fok)
	require.NoError(t, err)
	assert.Equal(t, orderbook.Filled, o.Status)
	assert.Len(t, sink.trades, 2)
}

func TestPostOnly(t *testing.T) {
	tp, _, _ := newTestPair(t)

	_, err := tp.Submit(limit("s1", "bob", orderbook.Sell, 500, 100))
	require.NoError(t, err)

	po := limit("b1", "alice", orderbook.Buy, 500, 100)
	po.TIF = orderbook.PostOnly
	_, err = tp.Submit(po)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	po = limit("b2", "alice", orderbook.Buy, 495, 100)
	po.TIF = orderbook.PostOnly
	o, err := tp.Submit(po)
	require.NoError(t, err)
	assert.Equal(t, orderbook.New, o.Status)

	po = limit("s2", "carol", orderbook.Sell, 495, 100)
	po.TIF = orderbook.PostOnly
	_, err = tp.Submit(po)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestMarketOrder(t *testing.T) {
	tp, led, sink := newTestPair(t)

	_, err := tp.Submit(limit("s1", "bob", orderbook.Sell, 500, 50))
	require.NoError(t, err)
	_, err = tp.Submit(limit("s2", "bob", orderbook.Sell, 510, 50))
	require.NoError(t, err)

	o, err := tp.Submit(SubmitReq{ID: "m1", Trader: "alice", Side: orderbook.Buy, Type: orderbook.Market, Qty: 120})
	require.NoError(t, err)

	// Market remainder dies instead of resting.
	assert.Equal(t, orderbook.Cancelled, o.Status)
	assert.Equal(t, int64(100), o.Filled)
	assert.Nil(t, tp.Order("m1"))
	assert.Zero(t, tp.Book(orderbook.Buy).BestPrice())
	assert.Zero(t, tp.Book(orderbook.Sell).BestPrice())
	assert.Len(t, sink.trades, 2)

	// Reserved 600 at the 500 reference, spent 505, got the rest back.
	free, held := led.Balance("alice", "USDC")
	assert.Equal(t, int64(999_495), free)
	assert.Zero(t, held)
}

func TestFeeFloors(t *testing.T) {
	tp, led, sink := newTestPair(t)

	_, err := tp.Submit(limit("s1", "bob", orderbook.Sell, 1000, 100))
	require.NoError(t, err)
	taker, err := tp.Submit(limit("b1", "alice", orderbook.Buy, 1000, 100))
	require.NoError(t, err)

	require.Len(t, sink.trades, 1)
	tr := sink.trades[0]
	// 25 bps of 1000 floors to 2, 45 bps floors to 4.
	assert.Equal(t, int64(2), tr.MakerFee)
	assert.Equal(t, int64(4), tr.TakerFee)
	assert.Equal(t, int64(4), taker.Fee)

	free, _ := led.Balance("bob", "USDC")
	assert.Equal(t, int64(1_000_994), free)
}

func TestSetFeeRates(t *testing.T) {
	tp, _, sink := newTestPair(t)

	assert.ErrorIs(t, tp.SetFeeRates(-1, 0), ErrInvalidOrder)
	require.NoError(t, tp.SetFeeRates(0, 0))

	_, err := tp.Submit(limit("s1", "bob", orderbook.Sell, 1000, 100))
	require.NoError(t, err)
	_, err = tp.Submit(limit("b1", "alice", orderbook.Buy, 1000, 100))
	require.NoError(t, err)

	require.Len(t, sink.trades, 1)
	assert.Zero(t, sink.trades[0].MakerFee)
	assert.Zero(t, sink.trades[0].TakerFee)
}

func TestCancel(t *testing.T) {
	tp, led, _ := newTestPair(t)

	_, err := tp.Submit(limit("b1", "alice", orderbook.Buy, 500, 100))
	require.NoError(t, err)

	require.NoError(t, tp.Cancel("b1"))
	assert.Nil(t, tp.Order("b1"))
	assert.Zero(t, tp.Book(orderbook.Buy).BestPrice())

	free, held := led.Balance("alice", "USDC")
	assert.Equal(t, int64(1_000_000), free)
	assert.Zero(t, held)

	assert.ErrorIs(t, tp.Cancel("b1"), ErrNotFound)
	assert.ErrorIs(t, tp.Cancel("nope"), ErrNotFound)
}

func TestCancelAll(t *testing.T) {
	tp, _, _ := newTestPair(t)

	for _, req := range []SubmitReq{
		limit("b1", "alice", orderbook.Buy, 500, 100),
		limit("b2", "alice", orderbook.Buy, 495, 100),
		limit("s1", "bob", orderbook.Sell, 510, 100),
	} {
		_, err := tp.Submit(req)
		require.NoError(t, err)
	}

	n, err := tp.CancelAll([]string{"b1", "ghost", "s1", "b2"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Zero(t, tp.Book(orderbook.Buy).Size())
	assert.Zero(t, tp.Book(orderbook.Sell).Size())
}

func TestCancelReplaceLosesQueuePosition(t *testing.T) {
	tp, _, _ := newTestPair(t)

	_, err := tp.Submit(limit("b1", "alice", orderbook.Buy, 500, 100))
	require.NoError(t, err)
	_, err = tp.Submit(limit("b2", "carol", orderbook.Buy, 500, 100))
	require.NoError(t, err)

	// Same price, same quantity: the replacement still goes to the tail.
	no, err := tp.CancelReplace("b1", "b1r", 500, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, orderbook.New, no.Status)
	assert.Nil(t, tp.Order("b1"))

	head, err := tp.Book(orderbook.Buy).GetHead(500)
	require.NoError(t, err)
	assert.Equal(t, "b2", head)
	qty, err := tp.Book(orderbook.Buy).LevelQty(500)
	require.NoError(t, err)
	assert.Equal(t, int64(200), qty)
}

func TestCancelReplaceRefusals(t *testing.T) {
	tp, _, _ := newTestPair(t)

	_, err := tp.CancelReplace("ghost", "g2", 500, 100, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tp.Submit(limit("b1", "alice", orderbook.Buy, 500, 100))
	require.NoError(t, err)
	_, err = tp.Submit(limit("s1", "bob", orderbook.Sell, 500, 30))
	require.NoError(t, err)

	// Any execution forbids replacement.
	b1 := tp.Order("b1")
	require.NotNil(t, b1)
	require.Equal(t, int64(30), b1.Filled)
	_, err = tp.CancelReplace("b1", "b1r", 495, 100, 0)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	// A bad replacement leaves the original untouched.
	_, err = tp.Submit(limit("b2", "carol", orderbook.Buy, 495, 100))
	require.NoError(t, err)
	_, err = tp.CancelReplace("b2", "b2r", 493, 100, 0)
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.NotNil(t, tp.Order("b2"))
}

func TestCancelReplaceCanExecute(t *testing.T) {
	tp, _, sink := newTestPair(t)

	_, err := tp.Submit(limit("b1", "alice", orderbook.Buy, 500, 100))
	require.NoError(t, err)
	_, err = tp.Submit(limit("s1", "bob", orderbook.Sell, 510, 50))
	require.NoError(t, err)

	no, err := tp.CancelReplace("b1", "b1r", 510, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, orderbook.Partial, no.Status)
	assert.Equal(t, int64(50), no.Filled)
	assert.Equal(t, int64(510), tp.Book(orderbook.Buy).BestPrice())
	assert.Len(t, sink.trades, 1)
}

// flakySettle settles normally for the first failAfter fills, then fails.
type flakySettle struct {
	funds.Service
	failAfter int
	calls     int
}

func (f *flakySettle) Settle(fl funds.Fill) error {
	f.calls++
	if f.calls > f.failAfter {
		return funds.ErrSettlement
	}
	return f.Service.Settle(fl)
}

func TestSettlementFailureMidSubmission(t *testing.T) {
	cfg := testConfig()
	led := funds.NewLedger()
	led.RegisterPair(cfg.ID, cfg.Base, cfg.Quote)
	for _, trader := range []string{"alice", "bob", "carol"} {
		led.Deposit(trader, cfg.Base, 1_000_000)
		led.Deposit(trader, cfg.Quote, 1_000_000)
	}
	flaky := &flakySettle{Service: led, failAfter: 1}
	sink := &captureSink{}
	tp := NewTradePair(cfg, flaky, sink, zap.NewNop())

	_, err := tp.Submit(limit("s1", "bob", orderbook.Sell, 500, 50))
	require.NoError(t, err)
	_, err = tp.Submit(limit("s2", "carol", orderbook.Sell, 505, 50))
	require.NoError(t, err)

	o, err := tp.Submit(limit("b1", "alice", orderbook.Buy, 505, 100))
	require.ErrorIs(t, err, funds.ErrSettlement)

	// The first fill stands, the failing one was never applied, the
	// remainder did not rest.
	assert.Equal(t, orderbook.Cancelled, o.Status)
	assert.Equal(t, int64(50), o.Filled)
	assert.Nil(t, tp.Order("b1"))
	assert.Zero(t, tp.Book(orderbook.Buy).BestPrice())
	assert.Len(t, sink.trades, 1)

	s2 := tp.Order("s2")
	require.NotNil(t, s2)
	assert.Zero(t, s2.Filled)
	qty, qerr := tp.Book(orderbook.Sell).LevelQty(505)
	require.NoError(t, qerr)
	assert.Equal(t, int64(50), qty)

	// No fills at all rejects outright.
	flaky.failAfter = flaky.calls - 1
	o, err = tp.Submit(limit("b2", "alice", orderbook.Buy, 505, 50))
	require.ErrorIs(t, err, funds.ErrSettlement)
	assert.Equal(t, orderbook.Rejected, o.Status)
	assert.Zero(t, o.Filled)
}

func TestInsufficientFunds(t *testing.T) {
	tp, led, _ := newTestPair(t)

	_, err := tp.Submit(limit("b1", "dave", orderbook.Buy, 500, 100))
	assert.ErrorIs(t, err, funds.ErrInsufficient)
	assert.Zero(t, tp.Book(orderbook.Buy).BestPrice())

	led.Deposit("dave", "USDC", 499)
	_, err = tp.Submit(limit("b2", "dave", orderbook.Buy, 500, 100))
	assert.ErrorIs(t, err, funds.ErrInsufficient)
}

func TestBookNeverCrossedInContinuousTrading(t *testing.T) {
	tp, _, _ := newTestPair(t)

	reqs := []SubmitReq{
		limit("o1", "alice", orderbook.Buy, 500, 40),
		limit("o2", "bob", orderbook.Sell, 520, 40),
		limit("o3", "carol", orderbook.Sell, 505, 60),
		limit("o4", "alice", orderbook.Buy, 510, 100),
		limit("o5", "bob", orderbook.Sell, 495, 30),
		limit("o6", "carol", orderbook.Buy, 525, 80),
		limit("o7", "alice", orderbook.Sell, 500, 120),
	}
	for _, req := range reqs {
		_, err := tp.Submit(req)
		if err != nil {
			require.NotErrorIs(t, err, ErrCrossedBook)
		}
		assert.True(t, orderbook.IsNotCrossedBook(tp.Book(orderbook.Sell), tp.Book(orderbook.Buy)),
			"book crossed after %s", req.ID)
	}
}

func TestBaseAssetConservation(t *testing.T) {
	tp, led, _ := newTestPair(t)

	for _, req := range []SubmitReq{
		limit("s1", "bob", orderbook.Sell, 500, 70),
		limit("s2", "carol", orderbook.Sell, 505, 30),
		limit("b1", "alice", orderbook.Buy, 505, 90),
	} {
		_, err := tp.Submit(req)
		require.NoError(t, err)
	}

	var total int64
	for _, trader := range []string{"alice", "bob", "carol"} {
		free, held := led.Balance(trader, "ALOT")
		total += free + held
	}
	assert.Equal(t, int64(3_000_000), total)
}
