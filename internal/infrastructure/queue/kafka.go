package queue

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/outbox"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher ships outbox events to the sales topic, keyed by event
// id so the consumer can drop redeliveries.
type KafkaPublisher struct {
	Writer       MessageWriter
	WriteTimeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
		WriteTimeout: 10 * time.Second,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt outbox.OutboxEvent) error {
	if p.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.WriteTimeout)
		defer cancel()
	}

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.ID),
		Value: evt.Payload,
		Time:  evt.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.Writer.Close()
}
