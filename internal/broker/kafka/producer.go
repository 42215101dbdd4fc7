package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes claim outcomes. Writes are retried a few times since
// the broker may come up after the api in docker compose.
type Producer struct {
	w       messageWriter
	retries int
	backoff time.Duration
}

func NewProducer(brokers []string) *Producer {
	return newProducerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	})
}

func newProducerWithWriter(w messageWriter) *Producer {
	return &Producer{w: w, retries: 3, backoff: 150 * time.Millisecond}
}

func (p *Producer) WithRetries(n int, backoff time.Duration) *Producer {
	if n > 0 {
		p.retries = n
	}
	if backoff >= 0 {
		p.backoff = backoff
	}
	return p
}

// Publish writes one message keyed by key, so outcomes of the same token land
// in the same partition.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	msg := kafka.Message{Topic: topic, Key: key, Value: value}

	var err error
	for i := 0; i < p.retries; i++ {
		if err = p.w.WriteMessages(ctx, msg); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(i+1) * p.backoff):
		}
	}
	return errors.Wrap(err, "kafka publish")
}

func (p *Producer) Close() error {
	return p.w.Close()
}
