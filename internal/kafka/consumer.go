package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ms-watchmarket/internal/logger"
	"ms-watchmarket/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader messageReader
	topic  string
	logger *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, topic: topic, logger: log}
}

// Start hands every order event to handler until ctx is cancelled. Handler
// errors are logged and the message is committed anyway: consumers of this
// stream are best-effort side effects.
func (c *Consumer) Start(ctx context.Context, handler func(context.Context, models.OrderEvent) error) error {
	c.logger.LogKafka("CONSUME", c.topic, "consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch from %s: %w", c.topic, err)
		}

		var event models.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("skipping malformed message at offset %d: %v", msg.Offset, err))
		} else if err := handler(ctx, event); err != nil {
			c.logger.Error("KAFKA", fmt.Sprintf("handler failed for %s on order %s: %v", event.Type, event.OrderID, err))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
