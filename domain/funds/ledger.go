package funds

import (
	"fmt"
	"sync"
)

type balance struct {
	free int64
	held int64
}

// Ledger is an in-memory funds service. It exists for the bundled server
// and for tests; a production deployment plugs a custody backend into the
// same interface.
type Ledger struct {
	mu       sync.Mutex
	accounts map[string]map[string]*balance

	// base/quote asset resolution per pair, needed to settle fills.
	pairs map[string][2]string
}

func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[string]map[string]*balance),
		pairs:    make(map[string][2]string),
	}
}

// RegisterPair tells the ledger which assets a pair id trades.
func (l *Ledger) RegisterPair(pair, base, quote string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pairs[pair] = [2]string{base, quote}
}

// Deposit credits free balance. Test and bootstrap helper.
func (l *Ledger) Deposit(trader, asset string, qty int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.get(trader, asset).free += qty
}

// Balance returns (free, held) for inspection.
func (l *Ledger) Balance(trader, asset string) (int64, int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.get(trader, asset)
	return b.free, b.held
}

func (l *Ledger) Reserve(trader, asset string, qty int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.get(trader, asset)
	if b.free < qty {
		return fmt.Errorf("%w: %s needs %d %s, has %d", ErrInsufficient, trader, qty, asset, b.free)
	}
	b.free -= qty
	b.held += qty
	return nil
}

func (l *Ledger) Release(trader, asset string, qty int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.get(trader, asset)
	if qty > b.held {
		qty = b.held
	}
	b.held -= qty
	b.free += qty
}

// Settle moves base from the seller's hold to the buyer and quote from the
// buyer's hold to the seller, charging both fees in quote units.
func (l *Ledger) Settle(f Fill) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	assets, ok := l.pairs[f.Pair]
	if !ok {
		return fmt.Errorf("%w: unknown pair %s", ErrSettlement, f.Pair)
	}
	base, quote := assets[0], assets[1]

	buyer, seller := f.Taker, f.Maker
	if !f.TakerBuys {
		buyer, seller = f.Maker, f.Taker
	}

	sb := l.get(seller, base)
	if sb.held+sb.free < f.Qty {
		return fmt.Errorf("%w: seller %s short of %s", ErrSettlement, seller, base)
	}
	bq := l.get(buyer, quote)
	if bq.held+bq.free < f.QuoteAmt {
		return fmt.Errorf("%w: buyer %s short of %s", ErrSettlement, buyer, quote)
	}

	debitHeldFirst(sb, f.Qty)
	debitHeldFirst(bq, f.QuoteAmt)
	l.get(buyer, base).free += f.Qty
	l.get(seller, quote).free += f.QuoteAmt - f.MakerFee - f.TakerFee
	return nil
}

func debitHeldFirst(b *balance, qty int64) {
	if b.held >= qty {
		b.held -= qty
		return
	}
	rest := qty - b.held
	b.held = 0
	b.free -= rest
}

func (l *Ledger) get(trader, asset string) *balance {
	// caller holds l.mu
	acct, ok := l.accounts[trader]
	if !ok {
		acct = make(map[string]*balance)
		l.accounts[trader] = acct
	}
	b, ok := acct[asset]
	if !ok {
		b = &balance{}
		acct[asset] = b
	}
	return b
}
