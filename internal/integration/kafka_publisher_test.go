//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-quality-service/internal/adapter/kafka"
	"github.com/couchcryptid/air-quality-service/internal/config"
	"github.com/couchcryptid/air-quality-service/internal/domain"
	"github.com/couchcryptid/air-quality-service/internal/observability"
)

const testEventTopic = "test-aqi-events"

// publishedMessage holds a message read back from the event topic.
type publishedMessage struct {
	Value   []byte
	Key     string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from event topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return publishedMessage{Value: msg.Value, Key: string(msg.Key), Headers: headers}
}

// TestPublisherRoundTrip publishes one event of each type and reads both back
// through a plain partition reader.
func TestPublisherRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventTopic)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testEventTopic,
	}
	metrics := observability.NewMetricsForTesting()
	pub := kafka.NewPublisher(cfg, discardLogger(), metrics)
	t.Cleanup(func() { _ = pub.Close() })

	generated := time.Date(2026, time.January, 10, 15, 0, 0, 0, time.UTC)
	forecast := domain.ForecastEvent{
		City:   "New Delhi",
		Anchor: domain.AQIReading{AQI: 212, City: "New Delhi", Source: domain.SourceWAQI, ObservedAt: generated},
		Points: []domain.ForecastPoint{
			{Time: generated.Add(3 * time.Hour), AQI: 214.5, Category: domain.CategoryPoor},
			{Time: generated.Add(6 * time.Hour), AQI: 220, Category: domain.CategoryPoor},
		},
		GeneratedAt: generated,
	}
	require.NoError(t, pub.PublishForecast(ctx, forecast))

	base := 150
	estimate := domain.EstimateEvent{
		City: "Delhi",
		Estimate: domain.ImagePollutionEstimate{
			ID:               "est-integration",
			CreatedAt:        generated.Add(time.Minute),
			BaseAQI:          &base,
			HazinessScore:    0.3,
			AQIRise:          30,
			PredictedAQI:     180,
			PollutionSource:  domain.SourceSmoke,
			HealthAlertLevel: domain.HealthAlertFor(180),
			DetectionMethod:  domain.MethodHaze,
		},
	}
	require.NoError(t, pub.PublishEstimate(ctx, estimate))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testEventTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readPublished(ctx, t, consumer)
	assert.Equal(t, "new_delhi", first.Key)
	assert.Equal(t, domain.EventForecast, first.Headers["event_type"])
	assert.Equal(t, generated.Format(time.RFC3339), first.Headers["generated_at"])

	var gotForecast domain.ForecastEvent
	require.NoError(t, json.Unmarshal(first.Value, &gotForecast))
	assert.Equal(t, forecast.City, gotForecast.City)
	assert.Equal(t, 212, gotForecast.Anchor.AQI)
	require.Len(t, gotForecast.Points, 2)
	assert.InDelta(t, 214.5, gotForecast.Points[0].AQI, 0)
	assert.Equal(t, domain.CategoryPoor, gotForecast.Points[1].Category)

	second := readPublished(ctx, t, consumer)
	assert.Equal(t, "est-integration", second.Key)
	assert.Equal(t, domain.EventEstimate, second.Headers["event_type"])

	var gotEstimate domain.EstimateEvent
	require.NoError(t, json.Unmarshal(second.Value, &gotEstimate))
	assert.Equal(t, "Delhi", gotEstimate.City)
	assert.Equal(t, 180, gotEstimate.Estimate.PredictedAQI)
	require.NotNil(t, gotEstimate.Estimate.BaseAQI)
	assert.Equal(t, 150, *gotEstimate.Estimate.BaseAQI)
	assert.Equal(t, domain.SourceSmoke, gotEstimate.Estimate.PollutionSource)
}
