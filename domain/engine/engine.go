package engine

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"odin/domain/funds"
	"odin/domain/orderbook"
)

// TradePair is the matching core of one pair: two books, the order
// registry, the auction controller, and fee computation. Every method
// must be called from within the pair's serialization domain; the pair
// itself holds no lock.
type TradePair struct {
	cfg Config

	buyBook  *orderbook.Book
	sellBook *orderbook.Book
	reg      *Registry

	mode         AuctionMode
	auctionPrice int64
	auctionDone  bool

	funds funds.Service
	sink  Sink
	log   *zap.Logger
}

// SubmitReq carries one incoming order. The id is caller-supplied and
// must be unique within the pair.
type SubmitReq struct {
	ID     string
	Trader string
	Side   orderbook.Side
	Type   orderbook.OrderType
	TIF    orderbook.TimeInForce
	Price  int64
	Qty    int64
	SeqID  uint64
}

func NewTradePair(cfg Config, fs funds.Service, sink Sink, log *zap.Logger) *TradePair {
	return &TradePair{
		cfg:      cfg,
		buyBook:  orderbook.NewBook(orderbook.Buy),
		sellBook: orderbook.NewBook(orderbook.Sell),
		reg:      NewRegistry(),
		mode:     AuctionOff,
		funds:    fs,
		sink:     sink,
		log:      log.With(zap.String("pair", cfg.ID)),
	}
}

func (tp *TradePair) Config() Config { return tp.cfg }

func (tp *TradePair) Registry() *Registry { return tp.reg }

// SetFeeRates updates pair fee rates. Operator-only at the API layer.
func (tp *TradePair) SetFeeRates(makerBps, takerBps int64) error {
	if makerBps < 0 || takerBps < 0 {
		return fmt.Errorf("%w: negative fee rate", ErrInvalidOrder)
	}
	tp.cfg.MakerFeeBps = makerBps
	tp.cfg.TakerFeeBps = takerBps
	return nil
}

// Book returns the requested side's book for queries.
func (tp *TradePair) Book(side orderbook.Side) *orderbook.Book {
	if side == orderbook.Buy {
		return tp.buyBook
	}
	return tp.sellBook
}

func (tp *TradePair) oppositeBook(side orderbook.Side) *orderbook.Book {
	return tp.Book(side.Opposite())
}

// Submit validates and executes one incoming order. On success the
// returned order reflects post-matching state; it may already be
// terminal and evicted from the registry.
func (tp *TradePair) Submit(req SubmitReq) (*orderbook.Order, error) {
	if !tp.mode.allowsEntry() {
		return nil, fmt.Errorf("%w: order entry refused in %s", ErrAuctionState, tp.mode)
	}
	if err := tp.validate(req); err != nil {
		return nil, err
	}

	if tp.mode.forcesRest() {
		return tp.submitAuction(req)
	}
	return tp.submitContinuous(req)
}

func (tp *TradePair) validate(req SubmitReq) error {
	if req.ID == "" || req.Trader == "" {
		return fmt.Errorf("%w: missing order id or trader", ErrInvalidOrder)
	}
	if tp.reg.Has(req.ID) {
		return fmt.Errorf("%w: duplicate order id %s", ErrInvalidOrder, req.ID)
	}
	if req.Qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	if req.Type == orderbook.Limit {
		if req.Price <= 0 {
			return fmt.Errorf("%w: limit price must be positive", ErrInvalidOrder)
		}
		if req.Price%tp.cfg.TickSize != 0 {
			return fmt.Errorf("%w: price %d not a multiple of tick %d", ErrInvalidOrder, req.Price, tp.cfg.TickSize)
		}
	}
	return nil
}

// referencePrice is the price used for amount validation and buy-side
// reservations: the limit price, or top of the opposite book for
// market orders.
func (tp *TradePair) referencePrice(req SubmitReq) (int64, error) {
	if req.Type == orderbook.Limit {
		return req.Price, nil
	}
	best := tp.oppositeBook(req.Side).BestPrice()
	if best == 0 {
		return 0, fmt.Errorf("%w: no market price for market order", ErrInvalidOrder)
	}
	return best, nil
}

func (tp *TradePair) checkAmount(price, qty int64) error {
	amt := tp.cfg.QuoteAmount(price, qty)
	if amt < tp.cfg.MinTradeAmount {
		return fmt.Errorf("%w: quote amount %d below minimum %d", ErrInvalidOrder, amt, tp.cfg.MinTradeAmount)
	}
	if amt > tp.cfg.MaxTradeAmount {
		return fmt.Errorf("%w: quote amount %d above maximum %d", ErrInvalidOrder, amt, tp.cfg.MaxTradeAmount)
	}
	return nil
}

// reserveOrder places the funds hold backing o and records it on the
// order: quote at refPrice for buys, base quantity for sells.
func (tp *TradePair) reserveOrder(o *orderbook.Order, refPrice int64) error {
	amt, asset := o.Qty, tp.cfg.Base
	if o.Side == orderbook.Buy {
		amt, asset = tp.cfg.QuoteAmount(refPrice, o.Qty), tp.cfg.Quote
	}
	if err := tp.funds.Reserve(o.Trader, asset, amt); err != nil {
		return err
	}
	o.Hold = amt
	return nil
}

// releaseHold returns whatever reservation still backs o. Fills debit the
// hold as they settle, so on a terminal order this is the unfilled part
// plus any price improvement the fills earned.
func (tp *TradePair) releaseHold(o *orderbook.Order) {
	if o.Hold <= 0 {
		return
	}
	asset := tp.cfg.Base
	if o.Side == orderbook.Buy {
		asset = tp.cfg.Quote
	}
	tp.funds.Release(o.Trader, asset, o.Hold)
	o.Hold = 0
}

// submitAuction rests an order during OPEN/CLOSING accumulation. The
// requested time-in-force is overridden to GTC and matching is
// suppressed, so the books may cross until the uncrossing pass.
func (tp *TradePair) submitAuction(req SubmitReq) (*orderbook.Order, error) {
	if req.Type == orderbook.Market {
		return nil, fmt.Errorf("%w: market orders not accepted while auction is %s", ErrInvalidOrder, tp.mode)
	}
	if err := tp.checkAmount(req.Price, req.Qty); err != nil {
		return nil, err
	}

	o := tp.newOrder(req)
	o.TIF = orderbook.GTC
	if err := tp.reserveOrder(o, o.Price); err != nil {
		return nil, err
	}
	tp.reg.Add(o)
	tp.Book(o.Side).AddOrder(o.Price, o)
	tp.emitStatus(o)
	return o, nil
}

func (tp *TradePair) submitContinuous(req SubmitReq) (*orderbook.Order, error) {
	refPrice, err := tp.referencePrice(req)
	if err != nil {
		return nil, err
	}
	if err := tp.checkAmount(refPrice, req.Qty); err != nil {
		return nil, err
	}

	if req.TIF == orderbook.PostOnly && tp.wouldCross(req) {
		return nil, fmt.Errorf("%w: post-only order would cross", ErrInvalidOrder)
	}
	if req.TIF == orderbook.FOK && tp.availableLiquidity(req) < req.Qty {
		return nil, fmt.Errorf("%w: fill-or-kill order cannot be fully filled", ErrInvalidOrder)
	}

	o := tp.newOrder(req)
	if err := tp.reserveOrder(o, refPrice); err != nil {
		return nil, err
	}
	return tp.execute(o)
}

// execute runs a reserved taker order through the continuous matching
// loop and disposes of the remainder.
func (tp *TradePair) execute(o *orderbook.Order) (*orderbook.Order, error) {
	tp.reg.Add(o)

	if err := tp.match(o); err != nil {
		// Settlement failed mid-submission. Fills already settled stand;
		// the failing fill was never applied and the remainder is killed.
		if o.Filled > 0 {
			o.Status = orderbook.Cancelled
		} else {
			o.Status = orderbook.Rejected
		}
		tp.releaseHold(o)
		tp.reg.Remove(o.ID)
		tp.emitStatus(o)
		return o, err
	}

	switch {
	case o.Remaining() == 0:
		o.Status = orderbook.Filled
		tp.releaseHold(o)
		tp.reg.Remove(o.ID)
	case o.Type == orderbook.Market:
		// Unfilled market remainder is never rested.
		o.Status = orderbook.Cancelled
		tp.releaseHold(o)
		tp.reg.Remove(o.ID)
	default:
		tp.Book(o.Side).AddOrder(o.Price, o)
	}
	tp.emitStatus(o)

	if !orderbook.IsNotCrossedBook(tp.sellBook, tp.buyBook) {
		tp.log.Error("book left crossed after continuous submission",
			zap.String("order", o.ID),
			zap.Int64("best_bid", tp.buyBook.BestPrice()),
			zap.Int64("best_ask", tp.sellBook.BestPrice()))
		return o, ErrCrossedBook
	}
	return o, nil
}

// match runs the continuous matching loop: take the opposite top of book
// while it crosses, fill min(remaining), FIFO within a level.
func (tp *TradePair) match(taker *orderbook.Order) error {
	opp := tp.oppositeBook(taker.Side)
	for taker.Remaining() > 0 {
		lvl := opp.BestLevel()
		if lvl == nil {
			return nil
		}
		if taker.Type != orderbook.Market {
			if taker.Side == orderbook.Buy && lvl.Price > taker.Price {
				return nil
			}
			if taker.Side == orderbook.Sell && lvl.Price < taker.Price {
				return nil
			}
		}

		maker := lvl.Head()
		qty := min64(taker.Remaining(), maker.Remaining())
		if err := tp.fill(maker, taker, lvl.Price, qty, false); err != nil {
			return err
		}
	}
	return nil
}

// fill settles and applies one execution at the maker's resting price.
// Settlement runs first: a refused settlement leaves both orders and the
// book untouched.
func (tp *TradePair) fill(maker, taker *orderbook.Order, price, qty int64, auction bool) error {
	quoteAmt := tp.cfg.QuoteAmount(price, qty)
	makerFee := fee(quoteAmt, tp.cfg.MakerFeeBps)
	takerFee := fee(quoteAmt, tp.cfg.TakerFeeBps)
	if auction {
		// Both sides of an auction uncrossing rest; both pay maker rate.
		takerFee = makerFee
	}

	err := tp.funds.Settle(funds.Fill{
		Pair:      tp.cfg.ID,
		Maker:     maker.Trader,
		Taker:     taker.Trader,
		TakerBuys: taker.Side == orderbook.Buy,
		Price:     price,
		Qty:       qty,
		QuoteAmt:  quoteAmt,
		MakerFee:  makerFee,
		TakerFee:  takerFee,
	})
	if err != nil {
		return fmt.Errorf("fill %s/%s for %d@%d: %w", maker.ID, taker.ID, qty, price, err)
	}

	maker.Filled += qty
	maker.Fee += makerFee
	taker.Filled += qty
	taker.Fee += takerFee

	// Settlement debits holds first, so mirror the consumption here.
	debitHold(maker, quoteAmt, qty)
	debitHold(taker, quoteAmt, qty)

	// The maker rests at its own limit price; in an auction that differs
	// from the execution price.
	makerBook := tp.Book(maker.Side)
	if maker.Remaining() == 0 {
		maker.Status = orderbook.Filled
		if _, err := makerBook.RemoveFirstOrder(maker.Price); err != nil {
			return fmt.Errorf("evicting filled maker: %w", err)
		}
		tp.releaseHold(maker)
		tp.reg.Remove(maker.ID)
	} else {
		maker.Status = orderbook.Partial
		lvl := makerBook.Level(maker.Price)
		if lvl == nil {
			return fmt.Errorf("reducing maker level: %w", orderbook.ErrNotFound)
		}
		lvl.Reduce(qty)
	}
	if taker.Remaining() > 0 {
		taker.Status = orderbook.Partial
	} else {
		taker.Status = orderbook.Filled
	}

	tp.sink.Trade(TradeEvent{
		ID:         uuid.NewString(),
		Pair:       tp.cfg.ID,
		TakerOrder: taker.ID,
		MakerOrder: maker.ID,
		Taker:      taker.Trader,
		Maker:      maker.Trader,
		Price:      price,
		Qty:        qty,
		MakerFee:   makerFee,
		TakerFee:   takerFee,
		Auction:    auction,
	})
	tp.emitStatus(maker)
	return nil
}

// wouldCross reports whether a limit order would execute immediately.
func (tp *TradePair) wouldCross(req SubmitReq) bool {
	best := tp.oppositeBook(req.Side).BestPrice()
	if best == 0 {
		return false
	}
	if req.Side == orderbook.Buy {
		return best <= req.Price
	}
	return best >= req.Price
}

// availableLiquidity sums opposite-book quantity resting at prices the
// order may trade at. Used by the FOK feasibility pre-check.
func (tp *TradePair) availableLiquidity(req SubmitReq) int64 {
	var available int64
	opp := tp.oppositeBook(req.Side)
	for price := opp.NextPrice(0); price != 0; price = opp.NextPrice(price) {
		if req.Type == orderbook.Limit {
			if req.Side == orderbook.Buy && price > req.Price {
				break
			}
			if req.Side == orderbook.Sell && price < req.Price {
				break
			}
		}
		qty, err := opp.LevelQty(price)
		if err != nil {
			break
		}
		available += qty
		if available >= req.Qty {
			break
		}
	}
	return available
}

// Cancel marks the order cancelled and removes it from the book and
// registry. Unknown and already-terminal ids report ErrNotFound.
func (tp *TradePair) Cancel(id string) error {
	if tp.mode == AuctionMatching {
		return fmt.Errorf("%w: cancel refused while %s", ErrAuctionState, tp.mode)
	}
	o := tp.reg.Get(id)
	if o == nil || !o.Live() {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if _, err := tp.Book(o.Side).RemoveOrder(o.Price, o.ID); err != nil {
		return fmt.Errorf("cancel %s: %w", id, err)
	}
	tp.releaseHold(o)
	o.Status = orderbook.Cancelled
	tp.reg.Remove(o.ID)
	tp.emitStatus(o)
	return nil
}

// CancelAll cancels every listed order, skipping unknown or terminal
// entries instead of aborting the batch. It returns the number cancelled.
func (tp *TradePair) CancelAll(ids []string) (int, error) {
	if tp.mode == AuctionMatching {
		return 0, fmt.Errorf("%w: cancel refused while %s", ErrAuctionState, tp.mode)
	}
	n := 0
	for _, id := range ids {
		o := tp.reg.Get(id)
		if o == nil || !o.Live() {
			continue
		}
		if err := tp.Cancel(id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// CancelReplace atomically cancels the original order and submits a
// replacement inheriting trader, side, and type. The replacement goes to
// the tail of its level's queue: price or quantity changes forfeit queue
// position, even at an unchanged price. Orders with any execution cannot
// be replaced.
func (tp *TradePair) CancelReplace(id, newID string, newPrice, newQty int64, seq uint64) (*orderbook.Order, error) {
	if !tp.mode.allowsEntry() {
		return nil, fmt.Errorf("%w: order entry refused in %s", ErrAuctionState, tp.mode)
	}
	o := tp.reg.Get(id)
	if o == nil || !o.Live() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if o.Filled > 0 {
		return nil, fmt.Errorf("%w: order %s already executed", ErrInvalidOrder, id)
	}

	req := SubmitReq{
		ID:     newID,
		Trader: o.Trader,
		Side:   o.Side,
		Type:   o.Type,
		TIF:    orderbook.GTC,
		Price:  newPrice,
		Qty:    newQty,
		SeqID:  seq,
	}
	// Validate and reserve for the replacement before touching the
	// original, so a rejected replacement leaves the book unchanged.
	if err := tp.validate(req); err != nil {
		return nil, err
	}
	if err := tp.checkAmount(newPrice, newQty); err != nil {
		return nil, err
	}
	no := tp.newOrder(req)
	if err := tp.reserveOrder(no, newPrice); err != nil {
		return nil, err
	}

	if _, err := tp.Book(o.Side).RemoveOrder(o.Price, o.ID); err != nil {
		tp.releaseHold(no)
		return nil, fmt.Errorf("cancel-replace %s: %w", id, err)
	}
	tp.releaseHold(o)
	o.Status = orderbook.Cancelled
	tp.reg.Remove(o.ID)
	tp.emitStatus(o)

	if tp.mode.forcesRest() {
		tp.reg.Add(no)
		tp.Book(no.Side).AddOrder(no.Price, no)
		tp.emitStatus(no)
		return no, nil
	}
	return tp.execute(no)
}

// Restore reinstates a recovered resting order, bypassing validation and
// funds checks. Recovery only; the order is trusted as previously
// accepted state.
func (tp *TradePair) Restore(o *orderbook.Order) {
	o.Pair = tp.cfg.ID
	tp.reg.Add(o)
	tp.Book(o.Side).AddOrder(o.Price, o)
}

// RestoreAuction reinstates recovered auction state. Recovery only.
func (tp *TradePair) RestoreAuction(mode AuctionMode, price int64, done bool) {
	tp.mode = mode
	tp.auctionPrice = price
	tp.auctionDone = done
}

// Order returns the live order record for id, nil if absent.
func (tp *TradePair) Order(id string) *orderbook.Order {
	return tp.reg.Get(id)
}

func (tp *TradePair) newOrder(req SubmitReq) *orderbook.Order {
	price := req.Price
	if req.Type == orderbook.Market {
		price = 0
	}
	return &orderbook.Order{
		ID:     req.ID,
		Trader: req.Trader,
		Pair:   tp.cfg.ID,
		Side:   req.Side,
		Type:   req.Type,
		TIF:    req.TIF,
		Price:  price,
		Qty:    req.Qty,
		Status: orderbook.New,
		SeqID:  req.SeqID,
	}
}

func (tp *TradePair) emitStatus(o *orderbook.Order) {
	tp.sink.OrderStatus(OrderStatusEvent{
		Pair:      o.Pair,
		OrderID:   o.ID,
		Trader:    o.Trader,
		Side:      o.Side,
		Status:    o.Status,
		Price:     o.Price,
		Qty:       o.Qty,
		Filled:    o.Filled,
		Remaining: o.Remaining(),
		Fee:       o.Fee,
		SeqID:     o.SeqID,
	})
}

// debitHold consumes the reservation a settled fill drew on. Market buys
// can fill above their reserved reference price, so clamp at zero; the
// ledger covers the excess from free balance.
func debitHold(o *orderbook.Order, quoteAmt, qty int64) {
	spent := qty
	if o.Side == orderbook.Buy {
		spent = quoteAmt
	}
	o.Hold -= spent
	if o.Hold < 0 {
		o.Hold = 0
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
