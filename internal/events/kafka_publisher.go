package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublishTimeout bounds each write so a broker outage cannot stall the
// request that triggered the event.
const PublishTimeout = 5 * time.Second

// KafkaPublisher forwards lifecycle events to a Kafka topic as JSON,
// keyed by ticket id so per-ticket ordering survives partitioning.
type KafkaPublisher struct {
	writer  MessageWriter
	timeout time.Duration
}

// NewKafkaPublisher creates a publisher. With no brokers or no topic it is a no-op.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if len(brokers) == 0 || topic == "" {
		return &KafkaPublisher{}
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           PublishTimeout,
			AllowAutoTopicCreation: true,
		},
		timeout: PublishTimeout,
	}
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, timeout: PublishTimeout}
}

// Enabled reports whether events are actually sent anywhere.
func (p *KafkaPublisher) Enabled() bool {
	return p != nil && p.writer != nil
}

// Handle is an EventHandler writing the event to Kafka.
func (p *KafkaPublisher) Handle(ctx context.Context, event Event) error {
	if !p.Enabled() {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: marshal %s event: %w", event.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(event.TicketID),
		Value: body,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s event: %w", event.Type, err)
	}
	return nil
}

// Close closes the writer.
func (p *KafkaPublisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}
