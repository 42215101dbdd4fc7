package outcome

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/BearBump/ClaimBox/internal/broker/messages"
	"github.com/pkg/errors"
)

// Reporter receives every outcome of a batch as soon as it is known.
type Reporter interface {
	Report(ctx context.Context, o Outcome) error
}

// LogReporter writes outcomes to slog.
type LogReporter struct {
	Log *slog.Logger
}

func (r LogReporter) Report(_ context.Context, o Outcome) error {
	l := r.Log
	if l == nil {
		l = slog.Default()
	}
	line := Line(o, FormatterFor(o.Op))
	if o.OK {
		l.Info(line, "op", string(o.Op), "token", o.Token, "claim_id", o.ClaimID, "status", o.Status)
		return nil
	}
	l.Error(line, "op", string(o.Op), "token", o.Token, "kind", string(o.Kind), "code", o.Code)
	return nil
}

// Collector keeps outcomes in memory in arrival order.
type Collector struct {
	mu  sync.Mutex
	out []Outcome
}

func (c *Collector) Report(_ context.Context, o Outcome) error {
	c.mu.Lock()
	c.out = append(c.out, o)
	c.mu.Unlock()
	return nil
}

func (c *Collector) Outcomes() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Outcome(nil), c.out...)
}

// Multi fans an outcome out to every reporter, returning the first error.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, o Outcome) error {
	var first error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, o); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// KafkaReporter publishes outcomes as messages.ClaimOutcome keyed by token.
type KafkaReporter struct {
	producer Producer
	topic    string
}

func NewKafkaReporter(p Producer, topic string) *KafkaReporter {
	if topic == "" {
		topic = messages.ClaimOutcomesTopic
	}
	return &KafkaReporter{producer: p, topic: topic}
}

func (r *KafkaReporter) Report(ctx context.Context, o Outcome) error {
	b, err := json.Marshal(ToMessage(o))
	if err != nil {
		return errors.Wrap(err, "marshal outcome")
	}
	return r.producer.Publish(ctx, r.topic, []byte(o.Token), b)
}

func ToMessage(o Outcome) messages.ClaimOutcome {
	return messages.ClaimOutcome{
		RunID:      o.RunID,
		Op:         string(o.Op),
		Token:      o.Token,
		ClaimID:    o.ClaimID,
		NewClaimID: o.NewClaimID,
		Source:     o.Source,
		Status:     o.Status,
		Code:       o.Code,
		Message:    o.Message,
		Kind:       string(o.Kind),
		OK:         o.OK,
		Attempts:   o.Attempts,
		At:         o.At,
	}
}

func FromMessage(m messages.ClaimOutcome) Outcome {
	return Outcome{
		RunID:      m.RunID,
		Op:         Op(m.Op),
		Token:      m.Token,
		ClaimID:    m.ClaimID,
		NewClaimID: m.NewClaimID,
		Source:     m.Source,
		Status:     m.Status,
		Code:       m.Code,
		Message:    m.Message,
		Kind:       Kind(m.Kind),
		OK:         m.OK,
		Attempts:   m.Attempts,
		At:         m.At,
	}
}
