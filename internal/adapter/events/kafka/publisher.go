package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coin-tip-ledger/config"
	"coin-tip-ledger/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ messageWriter = (*kafka.Writer)(nil)

// Publisher implements ports.EventPublisher on a Kafka topic.
// Messages are keyed by coin so one coin's events stay ordered on a partition.
type Publisher struct {
	writer  messageWriter
	timeout time.Duration
	log     zerolog.Logger
}

// batchTimeout bounds how long an event waits for a batch to fill.
const batchTimeout = 10 * time.Millisecond

// NewPublisher creates a publisher for cfg.Topic on cfg.Brokers.
func NewPublisher(cfg config.KafkaConfig, log zerolog.Logger) *Publisher {
	p := newPublisher(nil, log)
	p.writer = newWriter(cfg, p.log)
	return p
}

// newWriter builds an async writer, so Publish never waits on the broker.
// Delivery failures surface through Completion.
func newWriter(cfg config.KafkaConfig, log zerolog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: batchTimeout,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn().Err(err).Int("messages", len(msgs)).Msg("Failed to deliver ledger events")
			}
		},
	}
}

func newPublisher(w messageWriter, log zerolog.Logger) *Publisher {
	return &Publisher{
		writer:  w,
		timeout: 5 * time.Second,
		log:     log.With().Str("component", "kafka_publisher").Logger(),
	}
}

// Publish writes evt as JSON. The write is bounded by the publisher timeout
// and survives cancellation of the request that produced the event.
func (p *Publisher) Publish(ctx context.Context, evt *domain.LedgerEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode ledger event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Coin),
		Value: data,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	})
	if err != nil {
		p.log.Warn().Err(err).
			Str("event_id", evt.ID.String()).
			Str("event_type", string(evt.Type)).
			Msg("Failed to publish ledger event")
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *domain.LedgerEvent) error { return nil }
