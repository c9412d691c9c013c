package kafka

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

const tapeTimeout = 2 * time.Second

type sender interface {
	Send(ctx context.Context, key, value []byte) error
	Close() error
}

// Tape forwards trade events from the live feed to a market-data topic.
// It is a best-effort tick stream for consumers that only want the tape;
// the outbox drain stays the canonical at-least-once channel. Broadcast
// only enqueues: filtering and the broker write happen on the drain
// goroutine, never inside the caller's critical section.
type Tape struct {
	producer sender
	log      *zap.Logger
	queue    chan []byte
	done     chan struct{}
}

func NewTape(p *Producer, log *zap.Logger) *Tape {
	return newTape(p, log)
}

func newTape(p sender, log *zap.Logger) *Tape {
	t := &Tape{
		producer: p,
		log:      log,
		queue:    make(chan []byte, 1024),
		done:     make(chan struct{}),
	}
	go t.drain()
	return t
}

// Broadcast never blocks; when the queue is saturated the payload is
// dropped.
func (t *Tape) Broadcast(payload []byte) {
	select {
	case t.queue <- payload:
	default:
		t.log.Warn("tape queue full, payload dropped")
	}
}

func (t *Tape) drain() {
	for {
		select {
		case <-t.done:
			return
		case payload := <-t.queue:
			t.publish(payload)
		}
	}
}

func (t *Tape) publish(payload []byte) {
	var env struct {
		Type string `json:"type"`
		Pair string `json:"pair"`
	}
	if json.Unmarshal(payload, &env) != nil || env.Type != "trade" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), tapeTimeout)
	defer cancel()
	if err := t.producer.Send(ctx, []byte(env.Pair), payload); err != nil {
		t.log.Warn("tape publish failed", zap.String("pair", env.Pair), zap.Error(err))
	}
}

func (t *Tape) Close() error {
	close(t.done)
	return t.producer.Close()
}
