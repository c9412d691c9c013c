package engine

import (
	"fmt"

	"go.uber.org/zap"

	"odin/domain/orderbook"
)

// AuctionMode is the trading mode of one pair. Continuous pairs sit in
// AuctionOff forever; pairs being launched walk Open, Closing, Matching
// and finally LiveTrading.
type AuctionMode int

const (
	// AuctionOff is plain continuous trading for a pair never auctioned.
	AuctionOff AuctionMode = iota
	// AuctionLiveTrading is continuous trading after an auction completed.
	AuctionLiveTrading
	// AuctionOpen accumulates limit orders without matching.
	AuctionOpen
	// AuctionClosing still accumulates orders while the operator settles
	// on a clearing price.
	AuctionClosing
	// AuctionPaused freezes order entry but keeps the books intact.
	AuctionPaused
	// AuctionMatching runs the uncrossing passes. All order flow is refused.
	AuctionMatching
	// AuctionRestricted allows cancels only.
	AuctionRestricted
)

func (m AuctionMode) String() string {
	switch m {
	case AuctionOff:
		return "OFF"
	case AuctionLiveTrading:
		return "LIVE_TRADING"
	case AuctionOpen:
		return "OPEN"
	case AuctionClosing:
		return "CLOSING"
	case AuctionPaused:
		return "PAUSED"
	case AuctionMatching:
		return "MATCHING"
	case AuctionRestricted:
		return "RESTRICTED"
	default:
		return fmt.Sprintf("AuctionMode(%d)", int(m))
	}
}

// Continuous reports whether incoming orders match on arrival.
func (m AuctionMode) Continuous() bool {
	return m == AuctionOff || m == AuctionLiveTrading
}

// allowsEntry reports whether new orders are accepted at all.
func (m AuctionMode) allowsEntry() bool {
	switch m {
	case AuctionOff, AuctionLiveTrading, AuctionOpen, AuctionClosing:
		return true
	}
	return false
}

// forcesRest reports whether accepted orders rest unmatched.
func (m AuctionMode) forcesRest() bool {
	return m == AuctionOpen || m == AuctionClosing
}

func (tp *TradePair) Mode() AuctionMode { return tp.mode }

func (tp *TradePair) AuctionPrice() int64 { return tp.auctionPrice }

// AuctionDone reports whether the current matching session completed.
func (tp *TradePair) AuctionDone() bool { return tp.auctionDone }

// SetAuctionMode moves the pair to mode. Leaving the auction for a
// continuous mode is refused while the books are still crossed: the
// uncrossing passes must run to completion first.
func (tp *TradePair) SetAuctionMode(mode AuctionMode) error {
	if mode < AuctionOff || mode > AuctionRestricted {
		return fmt.Errorf("%w: unknown mode %d", ErrAuctionState, int(mode))
	}
	if mode.Continuous() && !orderbook.IsNotCrossedBook(tp.sellBook, tp.buyBook) {
		return fmt.Errorf("%w: cannot enter %s with a crossed book", ErrAuctionState, mode)
	}
	if mode == AuctionMatching {
		tp.auctionDone = false
	}
	tp.log.Info("auction mode changed",
		zap.Stringer("from", tp.mode),
		zap.Stringer("to", mode))
	tp.mode = mode
	return nil
}

// SetAuctionPrice fixes the clearing price for the uncrossing passes.
// Only meaningful while the auction is accumulating or paused.
func (tp *TradePair) SetAuctionPrice(price int64) error {
	switch tp.mode {
	case AuctionOpen, AuctionClosing, AuctionPaused:
	default:
		return fmt.Errorf("%w: auction price not settable in %s", ErrAuctionState, tp.mode)
	}
	if price <= 0 || price%tp.cfg.TickSize != 0 {
		return fmt.Errorf("%w: auction price %d not a multiple of tick %d", ErrInvalidOrder, price, tp.cfg.TickSize)
	}
	tp.auctionPrice = price
	return nil
}

// MatchAuctionOrders runs up to maxFills executions of one uncrossing
// pass at the auction price. It returns true once no further fill is
// possible, which is when the best bid drops below the auction price or
// the best ask rises above it. Every completed call re-emits the
// completion signal, so a caller that missed it can ask again.
func (tp *TradePair) MatchAuctionOrders(maxFills int) (bool, error) {
	if tp.mode != AuctionMatching {
		return false, fmt.Errorf("%w: auction matching refused in %s", ErrAuctionState, tp.mode)
	}
	if tp.auctionPrice <= 0 {
		return false, fmt.Errorf("%w: auction price not set", ErrAuctionState)
	}
	if tp.auctionDone {
		tp.finishAuctionPass()
		return true, nil
	}

	for i := 0; i < maxFills; i++ {
		buyLvl := tp.buyBook.BestLevel()
		sellLvl := tp.sellBook.BestLevel()
		if buyLvl == nil || sellLvl == nil ||
			buyLvl.Price < tp.auctionPrice || sellLvl.Price > tp.auctionPrice {
			tp.finishAuctionPass()
			return true, nil
		}

		taker := buyLvl.Head()
		maker := sellLvl.Head()
		qty := min64(taker.Remaining(), maker.Remaining())
		if err := tp.fill(maker, taker, tp.auctionPrice, qty, true); err != nil {
			return false, err
		}
		// fill only maintains the maker's book; the bid side rests too
		// during an auction and needs the same upkeep.
		if taker.Remaining() == 0 {
			if _, err := tp.buyBook.RemoveFirstOrder(buyLvl.Price); err != nil {
				return false, fmt.Errorf("evicting filled auction bid: %w", err)
			}
			tp.releaseHold(taker)
			tp.reg.Remove(taker.ID)
		} else {
			buyLvl.Reduce(qty)
		}
		tp.emitStatus(taker)
	}

	// Budget exhausted. Report done if the pass happens to be complete.
	buyLvl := tp.buyBook.BestLevel()
	sellLvl := tp.sellBook.BestLevel()
	if buyLvl == nil || sellLvl == nil ||
		buyLvl.Price < tp.auctionPrice || sellLvl.Price > tp.auctionPrice {
		tp.finishAuctionPass()
		return true, nil
	}
	return false, nil
}

func (tp *TradePair) finishAuctionPass() {
	if !tp.auctionDone {
		tp.auctionDone = true
		tp.log.Info("auction pass finished",
			zap.Int64("auction_price", tp.auctionPrice),
			zap.Int("bid_levels", tp.buyBook.Size()),
			zap.Int("ask_levels", tp.sellBook.Size()))
	}
	tp.sink.AuctionFinished(tp.cfg.ID)
}
