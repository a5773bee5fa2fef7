package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"coin-tip-ledger/config"
	"coin-tip-ledger/internal/core/domain"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	ctxErr error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.ctxErr = ctx.Err()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, zerolog.Nop())

	evt := domain.NewLedgerEvent(domain.EventTipSent, "BTC")
	evt.From = "alice"
	evt.To = "bob"
	evt.Amount = btcutil.Amount(300_000_000)

	require.NoError(t, p.Publish(context.Background(), evt))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, []byte("BTC"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("TIP_SENT"), msg.Headers[0].Value)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "TIP_SENT", decoded["type"])
	assert.Equal(t, "alice", decoded["from"])
	assert.Equal(t, "bob", decoded["to"])
	assert.EqualValues(t, 300_000_000, decoded["amount"])
	assert.NotContains(t, decoded, "txid")
}

func TestPublisher_SurvivesCanceledRequest(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Publish(ctx, domain.NewLedgerEvent(domain.EventAddressCreated, "LTC")))
	assert.NoError(t, w.ctxErr)
}

func TestPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newPublisher(w, zerolog.Nop())

	err := p.Publish(context.Background(), domain.NewLedgerEvent(domain.EventWithdrawalDebited, "BTC"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WITHDRAWAL_DEBITED")
	assert.Contains(t, err.Error(), "broker down")
}

func TestPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, zerolog.Nop())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), domain.NewLedgerEvent(domain.EventTipSent, "BTC")))
}

func TestNewWriter_DoesNotBlockPublish(t *testing.T) {
	w := newWriter(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "ledger-events"}, zerolog.Nop())

	assert.True(t, w.Async)
	assert.Equal(t, batchTimeout, w.BatchTimeout)
	assert.Less(t, w.BatchTimeout, 100*time.Millisecond)
	assert.Equal(t, "ledger-events", w.Topic)
	require.NotNil(t, w.Completion)
	w.Completion(nil, errors.New("broker down"))
}
