package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher публикует доменные события платформы.
type Publisher interface {
	PublishOrder(ctx context.Context, event OrderEvent) error
	PublishEscrow(ctx context.Context, event EscrowEvent) error
	PublishDispute(ctx context.Context, event DisputeEvent) error
	Close() error
}

// KafkaPublisher отправляет события в Kafka.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher создает publisher для указанных брокеров.
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, topic string, key string, event interface{}) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal event %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("events: write message to %s %w", topic, err)
	}

	return nil
}

func (p *KafkaPublisher) PublishOrder(ctx context.Context, event OrderEvent) error {
	return p.publish(ctx, TopicOrders, event.OrderID.String(), event)
}

func (p *KafkaPublisher) PublishEscrow(ctx context.Context, event EscrowEvent) error {
	return p.publish(ctx, TopicEscrow, event.OrderID.String(), event)
}

func (p *KafkaPublisher) PublishDispute(ctx context.Context, event DisputeEvent) error {
	return p.publish(ctx, TopicDisputes, event.OrderID.String(), event)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher используется, когда брокеры не настроены.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrder(context.Context, OrderEvent) error     { return nil }
func (NoopPublisher) PublishEscrow(context.Context, EscrowEvent) error   { return nil }
func (NoopPublisher) PublishDispute(context.Context, DisputeEvent) error { return nil }
func (NoopPublisher) Close() error                                       { return nil }

// NewPublisher возвращает Kafka publisher либо no-op, если брокеры не заданы.
func NewPublisher(brokers []string) Publisher {
	if len(brokers) == 0 {
		return NoopPublisher{}
	}
	return NewKafkaPublisher(brokers)
}
