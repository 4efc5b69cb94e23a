package forecast

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/air-quality-service/internal/domain"
	"github.com/couchcryptid/air-quality-service/internal/observability"
)

// Forecast loop constants.
const (
	Horizon          = 24
	firstPointBand   = 5.0
	maxStepChange    = 15.0
	maxTotalDrift    = 50.0
	rubberBandFactor = 0.3
	historyLen       = 3
)

// Options tunes training and forecast generation.
type Options struct {
	TrainingDays int
	Location     *time.Location
	Forest       ForestParams
	// Seed fixes the synthetic training data generator; 0 seeds from the clock.
	Seed uint64
}

// Result is a forecast together with the reading it is anchored to.
type Result struct {
	Anchor domain.AQIReading
	Points []domain.ForecastPoint
}

// Forecaster produces per-city AQI forecasts from live feeds and a trained
// regressor.
type Forecaster struct {
	primary   domain.AirQualityFeed
	secondary domain.AirQualityFeed
	weather   domain.WeatherFeed
	models    *ModelCache
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Forecaster. Either feed may be nil, in which case it is
// skipped when resolving the current reading.
func New(primary, secondary domain.AirQualityFeed, weather domain.WeatherFeed, models *ModelCache, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Forecaster {
	if opts.TrainingDays <= 0 {
		opts.TrainingDays = 60
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Forest.Trees == 0 {
		opts.Forest = DefaultForestParams()
	}
	return &Forecaster{
		primary:   primary,
		secondary: secondary,
		weather:   weather,
		models:    models,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// CurrentReading returns the latest reading for a city: the primary feed,
// then the secondary feed, then a default reading. It never fails.
func (f *Forecaster) CurrentReading(ctx context.Context, city string) domain.AQIReading {
	if f.primary != nil {
		r, err := f.primary.CurrentReading(ctx, city)
		if err == nil {
			return r
		}
		f.logger.Warn("primary AQI feed failed", "city", city, "feed", "waqi", "error", err)
	}

	if f.secondary != nil {
		r, err := f.secondary.CurrentReading(ctx, city)
		if err == nil {
			r.Fallback = true
			f.metrics.FeedFallbacks.WithLabelValues(string(r.Source)).Inc()
			return r
		}
		f.logger.Warn("secondary AQI feed failed", "city", city, "feed", "openweather", "error", err)
	}

	f.metrics.FeedFallbacks.WithLabelValues(string(domain.SourceDefault)).Inc()
	f.logger.Warn("using default AQI reading", "city", city, "aqi", domain.DefaultAQI)
	return domain.DefaultReading(city)
}

// Train synthesizes a training set anchored on the live reading, fits a new
// model, persists and caches it, and returns its in-sample R².
func (f *Forecaster) Train(ctx context.Context, city string) (float64, error) {
	m, err := f.fit(ctx, city)
	if err != nil {
		return 0, err
	}
	if err := f.models.Put(ctx, m); err != nil {
		return 0, err
	}
	return m.R2, nil
}

// Model returns the model for a city, loading or training it on first use.
func (f *Forecaster) Model(ctx context.Context, city string) (*Model, error) {
	return f.models.LoadOrTrain(ctx, domain.CityKey(city), func(ctx context.Context) (*Model, error) {
		return f.fit(ctx, city)
	})
}

// Predict returns the 24-point forecast for a city. A missing weather
// forecast yields an empty slice and a nil error.
func (f *Forecaster) Predict(ctx context.Context, city string) ([]domain.ForecastPoint, error) {
	res, err := f.Forecast(ctx, city)
	if err != nil {
		return nil, err
	}
	return res.Points, nil
}

// Forecast is Predict that also returns the anchor reading.
func (f *Forecaster) Forecast(ctx context.Context, city string) (Result, error) {
	model, err := f.Model(ctx, city)
	if err != nil {
		f.metrics.Forecasts.WithLabelValues("error").Inc()
		return Result{}, err
	}

	anchor := f.CurrentReading(ctx, city)
	res := Result{Anchor: anchor, Points: []domain.ForecastPoint{}}

	samples := f.weatherSamples(ctx, city)
	if len(samples) == 0 {
		f.metrics.Forecasts.WithLabelValues("empty").Inc()
		return res, nil
	}

	res.Points = project(model, float64(anchor.AQI), samples, f.opts.Location)
	f.metrics.Forecasts.WithLabelValues("ok").Inc()
	return res, nil
}

func (f *Forecaster) weatherSamples(ctx context.Context, city string) []domain.WeatherSample {
	if f.weather == nil {
		return nil
	}
	samples, err := f.weather.Forecast(ctx, city)
	if err != nil {
		f.logger.Warn("weather forecast unavailable", "city", city, "feed", "openweather_forecast", "error", err)
		return nil
	}
	if len(samples) > Horizon {
		samples = samples[:Horizon]
	}
	return samples
}

func (f *Forecaster) fit(ctx context.Context, city string) (*Model, error) {
	key := domain.CityKey(city)
	reading := f.CurrentReading(ctx, city)

	start := time.Now()
	rows := SynthesizeTrainingSet(city, reading.AQI, f.opts.TrainingDays, domain.Now().In(f.opts.Location), f.newRand())
	m, err := Fit(ctx, key, rows, f.opts.Forest)
	if err != nil {
		return nil, err
	}
	f.metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	f.metrics.ModelR2.WithLabelValues(key).Set(m.R2)
	f.logger.Info("model trained", "city", city, "rows", len(rows), "r2", m.R2, "base_aqi", reading.AQI)
	return m, nil
}

func (f *Forecaster) newRand() *rand.Rand {
	seed := f.opts.Seed
	if seed == 0 {
		seed = uint64(domain.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

// project runs the anchored forecast loop over the weather samples.
func project(model *Model, anchor float64, samples []domain.WeatherSample, loc *time.Location) []domain.ForecastPoint {
	history := []float64{anchor, anchor}
	points := make([]domain.ForecastPoint, 0, len(samples))

	for idx, s := range samples {
		ts := s.Time.In(loc)
		row := domain.FeatureRow{
			Hour:      ts.Hour(),
			DayOfWeek: domain.MondayWeekday(ts),
			Month:     int(ts.Month()),
			Temp:      s.TemperatureC,
			Humidity:  s.HumidityPct,
			Wind:      s.WindSpeed,
			AQILag1:   history[len(history)-1],
			AQILag3:   history[len(history)-2],
		}

		v := anchorStep(idx, model.Predict(row), anchor, history[len(history)-1])
		points = append(points, domain.ForecastPoint{
			Time:        ts,
			AQI:         round1(v),
			Category:    domain.CategoryFor(v),
			Temperature: round1(s.TemperatureC),
			Humidity:    s.HumidityPct,
			Wind:        round1(s.WindSpeed),
		})

		history = append(history, v)
		if len(history) > historyLen {
			history = history[1:]
		}
	}
	return points
}

// anchorStep constrains a raw prediction: point 0 stays within ±5 of the
// anchor; later points move at most ±15 from the previous point and are
// pulled back by 30% of any drift beyond ±50 from the anchor.
func anchorStep(idx int, raw, anchor, prev float64) float64 {
	var v float64
	if idx == 0 {
		v = anchor + clip(raw-anchor, firstPointBand)
	} else {
		v = prev + clip(raw-prev, maxStepChange)
		if drift := v - anchor; math.Abs(drift) > maxTotalDrift {
			v -= rubberBandFactor * (drift - math.Copysign(maxTotalDrift, drift))
		}
	}
	return domain.ClampAQI(v)
}

func clip(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
