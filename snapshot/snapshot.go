// Package snapshot persists point-in-time book state so recovery can
// replay only the WAL tail instead of the full history.
package snapshot

import "time"

type Snapshot struct {
	Seq     uint64
	Created time.Time
	Pairs   []PairState
}

// PairState is one pair's full recoverable state: its auction position,
// fee rates, and every resting order in book priority order.
type PairState struct {
	Pair         string
	Mode         int
	AuctionPrice int64
	AuctionDone  bool
	MakerFeeBps  int64
	TakerFeeBps  int64
	Orders       []OrderEntry
}

type OrderEntry struct {
	ID     string
	Trader string
	Side   uint8
	Type   uint8
	TIF    uint8
	Price  int64
	Qty    int64
	Filled int64
	Fee    int64
	Hold   int64
	SeqID  uint64
}
