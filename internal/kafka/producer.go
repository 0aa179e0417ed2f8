package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"ms-watchmarket/internal/logger"
	"ms-watchmarket/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer streams order events. Messages are keyed by order id so every
// consumer sees one order's events in commit order.
type Producer struct {
	Writer messageWriter
	Topic  string
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Topic: topic, Logger: log}
}

func (p *Producer) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s for order %s: %w", event.Type, event.OrderID, err)
	}
	p.Logger.LogKafka("PUBLISH", p.Topic, fmt.Sprintf("%s %s (%s)", event.Type, event.OrderID, event.ToStatus))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
