package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aqi_service"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Feed metrics.
	FeedRequests    *prometheus.CounterVec   // labels: feed={waqi,openweather_air,openweather_forecast,geocode}, outcome={success,error}
	FeedAPIDuration *prometheus.HistogramVec // labels: feed
	FeedFallbacks   *prometheus.CounterVec   // labels: source={openweather,default}
	GeocodeCache    *prometheus.CounterVec   // labels: result={hit,miss}

	// Model metrics.
	ModelCache       *prometheus.CounterVec // labels: result={hit,loaded,trained}
	TrainingDuration prometheus.Histogram
	ModelR2          *prometheus.GaugeVec // labels: city
	WarmupRunning    prometheus.Gauge

	// Forecast and estimate metrics.
	Forecasts       *prometheus.CounterVec // labels: outcome={ok,empty,error}
	ImageEstimates  *prometheus.CounterVec // labels: source
	DegradedSteps   *prometheus.CounterVec // labels: step
	EventsPublished *prometheus.CounterVec // labels: type, outcome={success,error}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FeedRequests,
		m.FeedAPIDuration,
		m.FeedFallbacks,
		m.GeocodeCache,
		m.ModelCache,
		m.TrainingDuration,
		m.ModelR2,
		m.WarmupRunning,
		m.Forecasts,
		m.ImageEstimates,
		m.DegradedSteps,
		m.EventsPublished,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_requests_total",
			Help:      "External feed requests by feed and outcome.",
		}, []string{"feed", "outcome"}),
		FeedAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_api_duration_seconds",
			Help:      "External feed request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"feed"}),
		FeedFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fallbacks_total",
			Help:      "Current readings served from a fallback source.",
		}, []string{"source"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		ModelCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_cache_total",
			Help:      "Model lookups by how the model was obtained.",
		}, []string{"result"}),
		TrainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_training_duration_seconds",
			Help:      "Duration of a per-city model training run.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ModelR2: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_r2",
			Help:      "In-sample R² of the most recently trained model per city.",
		}, []string{"city"}),
		WarmupRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "warmup_running",
			Help:      "1 while startup model warm-up is in progress.",
		}),
		Forecasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecasts_total",
			Help:      "Forecast requests by outcome.",
		}, []string{"outcome"}),
		ImageEstimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_estimates_total",
			Help:      "Image estimates by resolved pollution source.",
		}, []string{"source"}),
		DegradedSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_degraded_steps_total",
			Help:      "Image estimate sub-steps that fell back to a default.",
		}, []string{"step"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events written to the sink topic by type and outcome.",
		}, []string{"type", "outcome"}),
	}
}
