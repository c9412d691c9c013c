package engine

import "errors"

var (
	// ErrInvalidOrder covers every rejection decided before any book
	// mutation: bad price, quantity, tick, duplicate id, a post-only
	// order that would cross, or an unfillable FOK.
	ErrInvalidOrder = errors.New("engine: invalid order")

	// ErrNotFound is returned by cancel and cancel-replace when the
	// target order id is unknown or already terminal.
	ErrNotFound = errors.New("engine: order not found")

	// ErrAuctionState marks an operation the current auction mode
	// forbids.
	ErrAuctionState = errors.New("engine: not allowed in current auction state")

	// ErrCrossedBook signals the internal invariant that continuous
	// matching never leaves best bid above best ask was violated. It is
	// a logic defect, not a user error.
	ErrCrossedBook = errors.New("engine: book left crossed")
)
