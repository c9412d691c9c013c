package service

import (
	"encoding/json"

	"go.uber.org/zap"

	"odin/domain/engine"
)

// Envelope frames every outbound event. Seq is the event's outbox key
// and is monotonic across all pairs.
type Envelope struct {
	V    int             `json:"v"`
	Type string          `json:"type"`
	Seq  uint64          `json:"seq"`
	Pair string          `json:"pair"`
	Data json.RawMessage `json:"data"`
}

const (
	EventOrder           = "order"
	EventTrade           = "trade"
	EventAuctionFinished = "auction_finished"
)

// eventSink receives engine events inside the pair lock and fans them
// out: durable outbox first, then the live feed. Replay mutes it.
type eventSink struct {
	svc *OrderService
}

func (k *eventSink) OrderStatus(ev engine.OrderStatusEvent) {
	k.svc.publish(EventOrder, ev.Pair, ev)
}

func (k *eventSink) Trade(ev engine.TradeEvent) {
	if !k.svc.muted.Load() {
		k.svc.metrics.Trades.WithLabelValues(ev.Pair).Inc()
		k.svc.metrics.TradeVolume.WithLabelValues(ev.Pair).Add(float64(ev.Qty))
	}
	k.svc.publish(EventTrade, ev.Pair, ev)
}

func (k *eventSink) AuctionFinished(pair string) {
	k.svc.publish(EventAuctionFinished, pair, struct {
		Pair string `json:"pair"`
	}{pair})
}

func (s *OrderService) publish(eventType, pair string, data any) {
	if s.muted.Load() {
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		s.log.Error("encoding event", zap.Error(err), zap.String("type", eventType))
		return
	}
	seq := s.seq.Next()
	payload, err := json.Marshal(Envelope{
		V:    1,
		Type: eventType,
		Seq:  seq,
		Pair: pair,
		Data: raw,
	})
	if err != nil {
		s.log.Error("encoding envelope", zap.Error(err), zap.String("type", eventType))
		return
	}

	if err := s.outbox.Append(seq, payload); err != nil {
		s.log.Error("outbox append failed", zap.Error(err), zap.Uint64("seq", seq))
	}
	s.feed.Broadcast(payload)
}
