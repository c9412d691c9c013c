package orderbook

type Side uint8
type OrderType uint8
type TimeInForce uint8
type Status uint8

const (
	Buy Side = iota
	Sell
)

const (
	Limit OrderType = iota
	Market
)

const (
	GTC TimeInForce = iota
	FOK
	PostOnly
)

const (
	New Status = iota
	Partial
	Filled
	Cancelled
	Rejected
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (t OrderType) String() string {
	if t == Market {
		return "MARKET"
	}
	return "LIMIT"
}

func (t TimeInForce) String() string {
	switch t {
	case FOK:
		return "FOK"
	case PostOnly:
		return "PO"
	default:
		return "GTC"
	}
}

func (s Status) String() string {
	switch s {
	case New:
		return "NEW"
	case Partial:
		return "PARTIAL"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	case Rejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the status admits no further state change.
func (s Status) Terminal() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

// Order is the mutable order record. The registry owns it; price levels
// only link it into their FIFO queues via next/prev.
type Order struct {
	ID     string
	Trader string
	Pair   string

	Side Side
	Type OrderType
	TIF  TimeInForce

	Price  int64 // quote units per whole base unit, ignored for Market
	Qty    int64 // original quantity in base units, never mutated after submit
	Filled int64 // cumulative filled quantity
	Fee    int64 // cumulative fee charged, quote units
	Hold   int64 // reserved funds still backing the order: quote units for buys, base units for sells

	Status Status
	SeqID  uint64

	next, prev *Order
}

func (o *Order) Remaining() int64 {
	return o.Qty - o.Filled
}

func (o *Order) Live() bool {
	return !o.Status.Terminal()
}

// Next returns the order behind o in its price level queue, nil at the tail.
func (o *Order) Next() *Order {
	return o.next
}
