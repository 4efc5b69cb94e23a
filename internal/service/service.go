// Package service coordinates the forecast and image estimators with the
// history store and the event publisher.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/air-quality-service/internal/adapter/history"
	"github.com/couchcryptid/air-quality-service/internal/domain"
	"github.com/couchcryptid/air-quality-service/internal/forecast"
	"github.com/couchcryptid/air-quality-service/internal/observability"
)

// Forecaster produces current readings, forecasts, and trained models.
type Forecaster interface {
	CurrentReading(ctx context.Context, city string) domain.AQIReading
	Forecast(ctx context.Context, city string) (forecast.Result, error)
	Train(ctx context.Context, city string) (float64, error)
	Model(ctx context.Context, city string) (*forecast.Model, error)
}

// ImageEstimator analyzes photographs.
type ImageEstimator interface {
	Estimate(ctx context.Context, image []byte, baseAQI *int) domain.ImagePollutionEstimate
	EstimateWithDetection(ctx context.Context, image []byte, baseAQI int) domain.ImagePollutionEstimate
	DetectorEnabled() bool
}

// EventPublisher publishes completed forecasts and estimates.
type EventPublisher interface {
	PublishForecast(ctx context.Context, ev domain.ForecastEvent) error
	PublishEstimate(ctx context.Context, ev domain.EstimateEvent) error
}

// HistoryStore persists estimates and area readings.
type HistoryStore interface {
	Save(ctx context.Context, e history.Entry) error
	List(ctx context.Context, limit int) ([]history.Entry, error)
	SaveAreaReading(ctx context.Context, r domain.AreaReading) error
	LatestAreaReadings(ctx context.Context) ([]domain.AreaReading, error)
}

// Options tunes a Service.
type Options struct {
	// WarmupCities are loaded or trained by Run.
	WarmupCities []string
	// AreaCacheTTL is how long stored area readings are reused. Zero
	// disables caching.
	AreaCacheTTL time.Duration
}

// EstimateRequest is one image submitted for analysis.
type EstimateRequest struct {
	Image   []byte
	City    string
	BaseAQI *int
	// Detect asks for the object detector. Ignored when no detector is
	// configured.
	Detect bool
}

// Service is the application core behind the HTTP handlers.
type Service struct {
	forecaster Forecaster
	estimator  ImageEstimator
	history    HistoryStore
	publisher  EventPublisher
	warmup     []string
	areas      areaCache
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
}

// New creates a Service. history and publisher may be nil.
func New(f Forecaster, e ImageEstimator, h HistoryStore, p EventPublisher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		forecaster: f,
		estimator:  e,
		history:    h,
		publisher:  p,
		warmup:     opts.WarmupCities,
		areas:      areaCache{ttl: opts.AreaCacheTTL},
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once startup warm-up has finished.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("model warm-up has not completed yet")
	}
	return nil
}

// CurrentReading returns the latest reading for a city. It never fails.
func (s *Service) CurrentReading(ctx context.Context, city string) domain.AQIReading {
	return s.forecaster.CurrentReading(ctx, city)
}

// Forecast builds the 24-point forecast for a city and publishes it.
// Publish failures are logged, not returned.
func (s *Service) Forecast(ctx context.Context, city string) (forecast.Result, error) {
	res, err := s.forecaster.Forecast(ctx, city)
	if err != nil {
		return forecast.Result{}, err
	}

	if s.publisher != nil && len(res.Points) > 0 {
		ev := domain.ForecastEvent{City: city, Anchor: res.Anchor, Points: res.Points, GeneratedAt: domain.Now()}
		if err := s.publisher.PublishForecast(ctx, ev); err != nil {
			s.logger.Warn("publish forecast failed", "city", city, "error", err)
		}
	}
	return res, nil
}

// Train retrains the model for a city and returns its in-sample R².
func (s *Service) Train(ctx context.Context, city string) (float64, error) {
	return s.forecaster.Train(ctx, city)
}

// Estimate analyzes an image, records it, and publishes it. Detection runs
// against the given base AQI, or the city's current reading when none is given.
func (s *Service) Estimate(ctx context.Context, req EstimateRequest) domain.ImagePollutionEstimate {
	var est domain.ImagePollutionEstimate
	if req.Detect && s.estimator.DetectorEnabled() {
		var base int
		if req.BaseAQI != nil {
			base = *req.BaseAQI
		} else {
			base = s.forecaster.CurrentReading(ctx, req.City).AQI
		}
		est = s.estimator.EstimateWithDetection(ctx, req.Image, base)
	} else {
		est = s.estimator.Estimate(ctx, req.Image, req.BaseAQI)
	}

	if s.history != nil {
		if err := s.history.Save(ctx, history.Entry{City: req.City, Estimate: est}); err != nil {
			s.logger.Error("save estimate failed", "id", est.ID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishEstimate(ctx, domain.EstimateEvent{City: req.City, Estimate: est}); err != nil {
			s.logger.Warn("publish estimate failed", "id", est.ID, "error", err)
		}
	}
	return est
}

// RecentEstimates lists stored estimates, newest first.
func (s *Service) RecentEstimates(ctx context.Context, limit int) ([]history.Entry, error) {
	if s.history == nil {
		return []history.Entry{}, nil
	}
	return s.history.List(ctx, limit)
}
