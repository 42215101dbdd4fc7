package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	last   []kafka.Message
	errs   []error
	calls  int
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.calls++
	w.last = append([]kafka.Message{}, msgs...)
	if len(w.errs) > 0 {
		err := w.errs[0]
		w.errs = w.errs[1:]
		return err
	}
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_Publish(t *testing.T) {
	fw := &fakeWriter{}
	p := newProducerWithWriter(fw)

	require.NoError(t, p.Publish(context.Background(), "claim.outcomes", []byte("k"), []byte("v")))
	require.Len(t, fw.last, 1)
	require.Equal(t, "claim.outcomes", fw.last[0].Topic)
	require.Equal(t, []byte("k"), fw.last[0].Key)
	require.Equal(t, []byte("v"), fw.last[0].Value)
}

func TestProducer_PublishRetries(t *testing.T) {
	fw := &fakeWriter{errs: []error{errors.New("leader not available")}}
	p := newProducerWithWriter(fw).WithRetries(3, 0)

	require.NoError(t, p.Publish(context.Background(), "t", []byte("k"), []byte("v")))
	require.Equal(t, 2, fw.calls)
}

func TestProducer_PublishGivesUp(t *testing.T) {
	boom := errors.New("boom")
	fw := &fakeWriter{errs: []error{boom, boom}}
	p := newProducerWithWriter(fw).WithRetries(2, 0)

	err := p.Publish(context.Background(), "t", []byte("k"), []byte("v"))
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, fw.calls)
}

func TestProducer_Close(t *testing.T) {
	fw := &fakeWriter{}
	require.NoError(t, newProducerWithWriter(fw).Close())
	require.True(t, fw.closed)
}

func TestNewProducer(t *testing.T) {
	p := NewProducer([]string{"localhost:0"})
	require.NotNil(t, p)
	require.NoError(t, p.Close())
}
