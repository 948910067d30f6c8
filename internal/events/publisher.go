// Package events publishes syllabus lifecycle and AI job events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/syllabus-review-service/internal/config"
	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/observability"
)

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event *domain.Event) error
	Close() error
}

// messageWriter is the part of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by aggregate ID, so all
// events of one syllabus land on the same partition in order.
type KafkaPublisher struct {
	writer  messageWriter
	logger  zerolog.Logger
	metrics *observability.Metrics
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher writing to cfg.Topic.
func NewKafkaPublisher(cfg config.KafkaConfig, logger zerolog.Logger, metrics *observability.Metrics) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer, logger, metrics)
}

func newKafkaPublisher(w messageWriter, logger zerolog.Logger, metrics *observability.Metrics) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  w,
		logger:  logger.With().Str("component", "kafka_publisher").Logger(),
		metrics: metrics,
	}
}

// Publish writes one event.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.EventType, err)
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
		{Key: "event_id", Value: []byte(event.EventID)},
	}
	if id := observability.RequestIDFromContext(ctx); id != "" {
		headers = append(headers, kafka.Header{Key: "correlation_id", Value: []byte(id)})
	}
	if traceID, _ := observability.TraceSpanFromContext(ctx); traceID != "" {
		headers = append(headers, kafka.Header{Key: "trace_id", Value: []byte(traceID)})
	}

	msg := kafka.Message{
		Key:     []byte(event.AggregateID),
		Value:   value,
		Headers: headers,
		Time:    event.CreatedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.RecordEventFailed(event.EventType)
		return fmt.Errorf("write event %s: %w", event.EventType, err)
	}

	p.metrics.RecordEventPublished(event.EventType)
	p.logger.Debug().
		Str("event_type", event.EventType).
		Str("aggregate_id", event.AggregateID).
		Msg("event published")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events. It is used when Kafka is disabled.
type NopPublisher struct {
	logger zerolog.Logger
}

var _ Publisher = NopPublisher{}

// NewNopPublisher creates a publisher that only logs at debug level.
func NewNopPublisher(logger zerolog.Logger) NopPublisher {
	return NopPublisher{logger: logger}
}

// Publish discards event.
func (n NopPublisher) Publish(_ context.Context, event *domain.Event) error {
	n.logger.Debug().Str("event_type", event.EventType).Msg("kafka disabled, event dropped")
	return nil
}

// Close is a no-op.
func (NopPublisher) Close() error { return nil }
