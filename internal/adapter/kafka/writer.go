package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/air-quality-service/internal/config"
	"github.com/couchcryptid/air-quality-service/internal/domain"
	"github.com/couchcryptid/air-quality-service/internal/observability"
)

// publishBatchTimeout bounds how long a single-message write waits for a
// batch to fill. Events are written one at a time from request handlers.
const publishBatchTimeout = 10 * time.Millisecond

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes forecast and estimate events to the configured topic.
type Publisher struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a Kafka producer for the configured event topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: publishBatchTimeout,
	}
	return &Publisher{writer: w, logger: logger, metrics: metrics}
}

// PublishForecast publishes a completed forecast keyed by city.
func (p *Publisher) PublishForecast(ctx context.Context, ev domain.ForecastEvent) error {
	msg, err := serializeToMessage(domain.EventForecast, domain.CityKey(ev.City), ev, ev.GeneratedAt)
	if err != nil {
		return err
	}
	return p.write(ctx, domain.EventForecast, msg)
}

// PublishEstimate publishes an image estimate keyed by estimate ID.
func (p *Publisher) PublishEstimate(ctx context.Context, ev domain.EstimateEvent) error {
	msg, err := serializeToMessage(domain.EventEstimate, ev.Estimate.ID, ev, ev.Estimate.CreatedAt)
	if err != nil {
		return err
	}
	return p.write(ctx, domain.EventEstimate, msg)
}

func (p *Publisher) write(ctx context.Context, eventType string, msg kafkago.Message) error {
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.EventsPublished.WithLabelValues(eventType, "error").Inc()
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	p.metrics.EventsPublished.WithLabelValues(eventType, "success").Inc()
	p.logger.Debug("event published", "type", eventType, "key", string(msg.Key))
	return nil
}

// Close flushes pending writes and closes the producer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an event into a Kafka message with type and
// timestamp headers.
func serializeToMessage(eventType, key string, payload any, at time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s event: %w", eventType, err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "generated_at", Value: []byte(at.Format(time.RFC3339))},
		},
	}, nil
}
