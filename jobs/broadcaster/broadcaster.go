// Package broadcaster drains the durable event outbox into Kafka.
//
// Delivery is at least once: a record is marked SENT before the publish
// attempt and ACKED only after the broker confirms it, so a crash between
// the two replays the record on the next pass.
package broadcaster

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"odin/infra/outbox"
)

const drainInterval = 250 * time.Millisecond

type Broadcaster struct {
	outbox   *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
}

func New(ob *outbox.Outbox, brokers []string, topic string, log *zap.Logger) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		outbox:   ob,
		producer: producer,
		topic:    topic,
		log:      log,
	}, nil
}

// Start runs the drain loop until ctx is cancelled.
func (b *Broadcaster) Start(ctx context.Context) {
	b.log.Info("broadcaster started", zap.String("topic", b.topic))

	go func() {
		ticker := time.NewTicker(drainInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.drainOnce()
			}
		}
	}()
}

func (b *Broadcaster) drainOnce() {
	err := b.outbox.ScanPending(func(rec *outbox.Record) error {
		if err := b.outbox.MarkSent(rec.Seq); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(keyFor(rec)),
			Value: sarama.ByteEncoder(rec.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			// Stays SENT; the next pass retries it.
			b.log.Warn("publish failed",
				zap.Uint64("seq", rec.Seq),
				zap.Uint32("retries", rec.Retries),
				zap.Error(err))
			return nil
		}

		return b.outbox.MarkAcked(rec.Seq)
	})
	if err != nil {
		b.log.Warn("outbox scan failed", zap.Error(err))
	}
}

// keyFor partitions by pair so consumers see per-pair events in order.
func keyFor(rec *outbox.Record) string {
	var env struct {
		Pair string `json:"pair"`
	}
	if json.Unmarshal(rec.Payload, &env) == nil && env.Pair != "" {
		return env.Pair
	}
	return strconv.FormatUint(rec.Seq, 10)
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
