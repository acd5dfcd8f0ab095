package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/config"
)

// Message is the unit of data published to Kafka. Key is used for partition
// hashing and Value is JSON-serialised.
type Message struct {
	Key   string
	Value any
}

// Producer publishes JSON-encoded messages to a Kafka topic.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer creates a Producer for the given topic.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &Producer{
		writer: w,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish serialises a single message and writes it to Kafka synchronously.
func (p *Producer) Publish(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg.Value)
	if err != nil {
		return fmt.Errorf("marshaling message value: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Key),
		Value: value,
	}); err != nil {
		p.logger.Error("failed to publish message",
			"key", msg.Key,
			"error", err,
		)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("message published",
		"key", msg.Key,
		"value_size", len(value),
	)
	return nil
}

// PublishBatch writes multiple messages to Kafka in a single write call.
func (p *Producer) PublishBatch(ctx context.Context, msgs []Message) error {
	messages := make([]kafka.Message, 0, len(msgs))
	for _, msg := range msgs {
		value, err := json.Marshal(msg.Value)
		if err != nil {
			return fmt.Errorf("marshaling message value: %w", err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(msg.Key),
			Value: value,
		})
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("failed to publish batch",
			"count", len(messages),
			"error", err,
		)
		return fmt.Errorf("publishing batch to kafka: %w", err)
	}
	p.logger.Debug("batch published", "count", len(messages))
	return nil
}

// Close flushes pending writes and closes the underlying Kafka writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
