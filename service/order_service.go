// Package service orchestrates the matching cores with the entry WAL,
// the event outbox, metrics, and the live feed. It is the only write
// entry point into the system; transports call it, never the engine.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"odin/domain/engine"
	"odin/domain/funds"
	"odin/domain/orderbook"
	"odin/infra/metrics"
	"odin/infra/outbox"
	"odin/infra/sequence"
	"odin/infra/wal"
)

// ErrUnknownPair is returned for any command or query naming a pair the
// server is not configured to trade.
var ErrUnknownPair = errors.New("service: unknown pair")

// Feed receives event payloads for live fan-out. Implementations must
// not block; the engine's accept path calls this.
type Feed interface {
	Broadcast(payload []byte)
}

// NopFeed drops everything.
type NopFeed struct{}

func (NopFeed) Broadcast([]byte) {}

type pairRuntime struct {
	mu sync.Mutex
	tp *engine.TradePair
}

// fundsGate bypasses the real funds service during WAL replay; every
// logged command already passed the checks when first accepted.
type fundsGate struct {
	inner  funds.Service
	bypass atomic.Bool
}

func (g *fundsGate) Reserve(trader, asset string, qty int64) error {
	if g.bypass.Load() {
		return nil
	}
	return g.inner.Reserve(trader, asset, qty)
}

func (g *fundsGate) Release(trader, asset string, qty int64) {
	if g.bypass.Load() {
		return
	}
	g.inner.Release(trader, asset, qty)
}

func (g *fundsGate) Settle(f funds.Fill) error {
	if g.bypass.Load() {
		return nil
	}
	return g.inner.Settle(f)
}

type OrderService struct {
	log     *zap.Logger
	seq     *sequence.Sequencer
	wal     *wal.WAL
	outbox  *outbox.Outbox
	metrics *metrics.Metrics
	feed    Feed
	gate    *fundsGate

	muted atomic.Bool // true while replaying; suppresses event emission
	pairs map[string]*pairRuntime
}

type Deps struct {
	Log     *zap.Logger
	Seq     *sequence.Sequencer
	WAL     *wal.WAL
	Outbox  *outbox.Outbox
	Metrics *metrics.Metrics
	Feed    Feed
	Funds   funds.Service
	Pairs   []engine.Config
}

func New(deps Deps) (*OrderService, error) {
	if deps.Feed == nil {
		deps.Feed = NopFeed{}
	}
	s := &OrderService{
		log:     deps.Log,
		seq:     deps.Seq,
		wal:     deps.WAL,
		outbox:  deps.Outbox,
		metrics: deps.Metrics,
		feed:    deps.Feed,
		gate:    &fundsGate{inner: deps.Funds},
		pairs:   make(map[string]*pairRuntime, len(deps.Pairs)),
	}

	for _, cfg := range deps.Pairs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.pairs[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate pair %s", cfg.ID)
		}
		sink := &eventSink{svc: s}
		s.pairs[cfg.ID] = &pairRuntime{
			tp: engine.NewTradePair(cfg, s.gate, sink, deps.Log),
		}
	}
	return s, nil
}

func (s *OrderService) pair(id string) (*pairRuntime, error) {
	pr, ok := s.pairs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPair, id)
	}
	return pr, nil
}

// Pairs lists the configured pairs.
func (s *OrderService) Pairs() []engine.Config {
	out := make([]engine.Config, 0, len(s.pairs))
	for _, pr := range s.pairs {
		out = append(out, pr.tp.Config())
	}
	return out
}

// logCommand appends an executed command to the WAL. The in-memory state
// already changed; a failed append is a durability incident the operator
// must act on, not a reason to lie to the submitter.
func (s *OrderService) logCommand(t wal.RecordType, seq uint64, cmd any) {
	data, err := json.Marshal(cmd)
	if err != nil {
		s.log.Error("encoding wal command", zap.Error(err), zap.Uint64("seq", seq))
		return
	}
	if err := s.wal.Append(wal.NewRecord(t, seq, data)); err != nil {
		s.log.Error("wal append failed", zap.Error(err), zap.Uint64("seq", seq))
		return
	}
	s.metrics.WALAppends.Inc()
}

// Submit places one order. The request's SeqID is assigned here.
func (s *OrderService) Submit(pair string, req engine.SubmitReq) (*orderbook.Order, error) {
	pr, err := s.pair(pair)
	if err != nil {
		return nil, err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()

	seq := s.seq.Next()
	req.SeqID = seq
	o, err := pr.tp.Submit(req)
	switch {
	case err == nil || errors.Is(err, engine.ErrCrossedBook):
		s.metrics.OrdersAccepted.WithLabelValues(pair).Inc()
		s.logCommand(wal.RecordSubmit, seq, submitCmdFor(pair, req, req.Qty))
	case o != nil && o.Filled > 0:
		// Settlement failed mid-match: the executed fills are durable
		// state. Log the filled quantity so replay stops exactly where
		// the live run did.
		s.logCommand(wal.RecordSubmit, seq, submitCmdFor(pair, req, o.Filled))
	default:
		s.metrics.OrdersRejected.WithLabelValues(pair).Inc()
		return o, err
	}
	s.observeBook(pr.tp)
	return o, err
}

func submitCmdFor(pair string, req engine.SubmitReq, qty int64) submitCmd {
	return submitCmd{
		Pair:   pair,
		ID:     req.ID,
		Trader: req.Trader,
		Side:   uint8(req.Side),
		Type:   uint8(req.Type),
		TIF:    uint8(req.TIF),
		Price:  req.Price,
		Qty:    qty,
	}
}

func (s *OrderService) Cancel(pair, id string) error {
	pr, err := s.pair(pair)
	if err != nil {
		return err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()

	if err := pr.tp.Cancel(id); err != nil {
		return err
	}
	s.metrics.OrdersCanceled.WithLabelValues(pair).Inc()
	s.logCommand(wal.RecordCancel, s.seq.Next(), cancelCmd{Pair: pair, ID: id})
	s.observeBook(pr.tp)
	return nil
}

// CancelBatch cancels every listed order it can and reports the count.
func (s *OrderService) CancelBatch(pair string, ids []string) (int, error) {
	pr, err := s.pair(pair)
	if err != nil {
		return 0, err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()

	n, err := pr.tp.CancelAll(ids)
	if n > 0 {
		s.metrics.OrdersCanceled.WithLabelValues(pair).Add(float64(n))
		s.logCommand(wal.RecordCancelAll, s.seq.Next(), cancelBatchCmd{Pair: pair, IDs: ids})
		s.observeBook(pr.tp)
	}
	return n, err
}

func (s *OrderService) CancelReplace(pair, id, newID string, price, qty int64) (*orderbook.Order, error) {
	pr, err := s.pair(pair)
	if err != nil {
		return nil, err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()

	seq := s.seq.Next()
	o, err := pr.tp.CancelReplace(id, newID, price, qty, seq)
	if err != nil && !errors.Is(err, engine.ErrCrossedBook) {
		if o == nil {
			// Nothing changed; the original still rests.
			return nil, err
		}
		// Mid-match settlement failure after the original was already
		// cancelled. Logged as the cancel plus the executed part of the
		// replacement, if any.
		s.logCommand(wal.RecordCancel, seq, cancelCmd{Pair: pair, ID: id})
		if o.Filled > 0 {
			s.logCommand(wal.RecordSubmit, s.seq.Next(), submitCmd{
				Pair: pair, ID: newID, Trader: o.Trader,
				Side: uint8(o.Side), Type: uint8(o.Type), TIF: uint8(o.TIF),
				Price: price, Qty: o.Filled,
			})
		}
		s.observeBook(pr.tp)
		return o, err
	}
	s.logCommand(wal.RecordCancelReplace, seq, replaceCmd{
		Pair: pair, ID: id, NewID: newID, Price: price, Qty: qty,
	})
	s.observeBook(pr.tp)
	return o, err
}

func (s *OrderService) SetAuctionMode(pair string, mode engine.AuctionMode) error {
	pr, err := s.pair(pair)
	if err != nil {
		return err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()

	if err := pr.tp.SetAuctionMode(mode); err != nil {
		return err
	}
	s.metrics.AuctionMode.WithLabelValues(pair).Set(float64(mode))
	s.logCommand(wal.RecordAuctionMode, s.seq.Next(), auctionModeCmd{Pair: pair, Mode: int(mode)})
	return nil
}

func (s *OrderService) SetAuctionPrice(pair string, price int64) error {
	pr, err := s.pair(pair)
	if err != nil {
		return err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()

	if err := pr.tp.SetAuctionPrice(price); err != nil {
		return err
	}
	s.logCommand(wal.RecordAuctionPrice, s.seq.Next(), auctionPriceCmd{Pair: pair, Price: price})
	return nil
}

// MatchAuction runs one budgeted uncrossing pass.
func (s *OrderService) MatchAuction(pair string, maxFills int) (bool, error) {
	pr, err := s.pair(pair)
	if err != nil {
		return false, err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()

	done, err := pr.tp.MatchAuctionOrders(maxFills)
	if err != nil {
		return false, err
	}
	s.logCommand(wal.RecordAuctionMatch, s.seq.Next(), auctionMatchCmd{Pair: pair, MaxFills: maxFills})
	s.observeBook(pr.tp)
	return done, nil
}

func (s *OrderService) SetFeeRates(pair string, makerBps, takerBps int64) error {
	pr, err := s.pair(pair)
	if err != nil {
		return err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()

	if err := pr.tp.SetFeeRates(makerBps, takerBps); err != nil {
		return err
	}
	s.logCommand(wal.RecordFeeRates, s.seq.Next(), feeRatesCmd{
		Pair: pair, MakerBps: makerBps, TakerBps: takerBps,
	})
	return nil
}

//
// Queries
//

func (s *OrderService) BookPage(pair string, side orderbook.Side, maxPrices, maxOrders int, resumePrice int64, resumeOrder string) (orderbook.BookPage, error) {
	pr, err := s.pair(pair)
	if err != nil {
		return orderbook.BookPage{}, err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.tp.Book(side).GetNBook(maxPrices, maxOrders, resumePrice, resumeOrder), nil
}

// TopOfBook returns best bid and best ask, zero when a side is empty.
func (s *OrderService) TopOfBook(pair string) (bid, ask int64, err error) {
	pr, err := s.pair(pair)
	if err != nil {
		return 0, 0, err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.tp.Book(orderbook.Buy).BestPrice(), pr.tp.Book(orderbook.Sell).BestPrice(), nil
}

// BookSize reports live price levels per side.
func (s *OrderService) BookSize(pair string) (bids, asks int, err error) {
	pr, err := s.pair(pair)
	if err != nil {
		return 0, 0, err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.tp.Book(orderbook.Buy).Size(), pr.tp.Book(orderbook.Sell).Size(), nil
}

// Order returns a copy of the live order, or nil when it is unknown or
// already terminal.
func (s *OrderService) Order(pair, id string) (*orderbook.Order, error) {
	pr, err := s.pair(pair)
	if err != nil {
		return nil, err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()
	o := pr.tp.Order(id)
	if o == nil {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

// AuctionState reports the pair's auction mode and clearing price.
func (s *OrderService) AuctionState(pair string) (engine.AuctionMode, int64, error) {
	pr, err := s.pair(pair)
	if err != nil {
		return 0, 0, err
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.tp.Mode(), pr.tp.AuctionPrice(), nil
}

// observeBook refreshes the depth gauges. Caller holds the pair lock.
func (s *OrderService) observeBook(tp *engine.TradePair) {
	if s.muted.Load() {
		return
	}
	pair := tp.Config().ID
	s.metrics.BookLevels.WithLabelValues(pair, "buy").Set(float64(tp.Book(orderbook.Buy).Size()))
	s.metrics.BookLevels.WithLabelValues(pair, "sell").Set(float64(tp.Book(orderbook.Sell).Size()))
}
