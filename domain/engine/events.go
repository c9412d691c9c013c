package engine

import "odin/domain/orderbook"

// OrderStatusEvent is emitted whenever an order's status, fill, or fee
// state changes.
type OrderStatusEvent struct {
	Pair      string           `json:"pair"`
	OrderID   string           `json:"order_id"`
	Trader    string           `json:"trader"`
	Side      orderbook.Side   `json:"side"`
	Status    orderbook.Status `json:"status"`
	Price     int64            `json:"price"`
	Qty       int64            `json:"qty"`
	Filled    int64            `json:"filled"`
	Remaining int64            `json:"remaining"`
	Fee       int64            `json:"fee"`
	SeqID     uint64           `json:"seq_id"`
}

// TradeEvent is emitted once per execution.
type TradeEvent struct {
	ID         string `json:"id"`
	Pair       string `json:"pair"`
	TakerOrder string `json:"taker_order"`
	MakerOrder string `json:"maker_order"`
	Taker      string `json:"taker"`
	Maker      string `json:"maker"`
	Price      int64  `json:"price"`
	Qty        int64  `json:"qty"`
	MakerFee   int64  `json:"maker_fee"`
	TakerFee   int64  `json:"taker_fee"`
	Auction    bool   `json:"auction"`
}

// Sink receives engine events. Implementations must not call back into
// the pair; they run inside its serialization domain.
type Sink interface {
	OrderStatus(ev OrderStatusEvent)
	Trade(ev TradeEvent)
	AuctionFinished(pair string)
}

// NopSink discards all events. Used during WAL replay.
type NopSink struct{}

func (NopSink) OrderStatus(OrderStatusEvent) {}
func (NopSink) Trade(TradeEvent)             {}
func (NopSink) AuctionFinished(string)       {}
