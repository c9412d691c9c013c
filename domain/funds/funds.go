// Package funds defines the custody collaborators the matching core calls
// out to. The engine never touches balances itself: it asks for a
// reservation before resting or filling an order and reports every fill
// for settlement.
package funds

import "errors"

var (
	// ErrInsufficient is returned by Reserve when the trader cannot back
	// the order.
	ErrInsufficient = errors.New("funds: insufficient balance")

	// ErrSettlement is returned by Settle when a computed fill cannot be
	// settled. The engine treats it as fatal for the submission.
	ErrSettlement = errors.New("funds: settlement failed")
)

// Fill is the settlement callback payload for one execution. TakerBuys
// orients the transfer: when true the taker receives base and pays quote.
// QuoteAmt is the engine-computed fixed-point quote value of the fill.
type Fill struct {
	Pair      string
	Maker     string
	Taker     string
	TakerBuys bool
	Price     int64 // quote units per whole base unit
	Qty       int64 // base units
	QuoteAmt  int64 // quote units
	MakerFee  int64 // quote units
	TakerFee  int64 // quote units
}

// Service is the funds-check and settlement collaborator.
type Service interface {
	// Reserve places a hold of qty units of asset for trader. It returns
	// ErrInsufficient when the free balance cannot cover the hold.
	Reserve(trader, asset string, qty int64) error

	// Release drops a previously placed hold, e.g. on cancel.
	Release(trader, asset string, qty int64)

	// Settle moves funds for one fill. A non-nil error aborts the fill.
	Settle(f Fill) error
}

// Unchecked approves every reservation and settlement. It backs WAL
// replay, where every recorded command already passed the real checks.
type Unchecked struct{}

func (Unchecked) Reserve(string, string, int64) error { return nil }
func (Unchecked) Release(string, string, int64)       {}
func (Unchecked) Settle(Fill) error                   { return nil }
