package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// EventPublisher delivers an event to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single topic. The event type travels as
// a header so consumers can filter without decoding the body; the event ID
// is the message key.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
		topic: topic,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.ID.String()),
		Value: body,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// LogPublisher is used when no broker is configured: events are only logged.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, evt Event) error {
	log.Info().
		Str("event_id", evt.ID.String()).
		Str("event_type", evt.Type).
		RawJSON("payload", evt.Payload).
		Msg("event")
	return nil
}

func (LogPublisher) Close() error { return nil }
