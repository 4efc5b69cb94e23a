package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/air-quality-service/internal/adapter/history"
	"github.com/couchcryptid/air-quality-service/internal/domain"
	"github.com/couchcryptid/air-quality-service/internal/forecast"
	"github.com/couchcryptid/air-quality-service/internal/service"
	"github.com/couchcryptid/air-quality-service/internal/vision"
)

// DefaultCity is used when a request names no city.
const DefaultCity = "Delhi"

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// AirQualityService is the application core the API handlers call.
type AirQualityService interface {
	ReadinessChecker
	CurrentReading(ctx context.Context, city string) domain.AQIReading
	Forecast(ctx context.Context, city string) (forecast.Result, error)
	Train(ctx context.Context, city string) (float64, error)
	Estimate(ctx context.Context, req service.EstimateRequest) domain.ImagePollutionEstimate
	RecentEstimates(ctx context.Context, limit int) ([]history.Entry, error)
	AreaReadings(ctx context.Context) []domain.AreaReading
	RecordAreaReading(ctx context.Context, r domain.AreaReading) (domain.AreaReading, error)
	SimulatePolicies(ctx context.Context, req domain.SimulationRequest) (domain.SimulationResult, error)
}

// Server exposes the JSON API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer     *http.Server
	svc            AirQualityService
	maxImageBytes  int64
	maxImagePixels int
	logger         *slog.Logger
}

// NewServer creates an HTTP server with the API routes, /healthz, /readyz,
// and /metrics. Image bodies larger than maxImageBytes, or declaring more than
// maxImagePixels pixels, are rejected. A non-positive maxImagePixels means
// vision.DefaultMaxPixels.
func NewServer(addr string, svc AirQualityService, maxImageBytes int64, maxImagePixels int, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	if maxImagePixels <= 0 {
		maxImagePixels = vision.DefaultMaxPixels
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 30 * time.Second,
			// Training a model on first forecast can take a while.
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		svc:            svc,
		maxImageBytes:  maxImageBytes,
		maxImagePixels: maxImagePixels,
		logger:         logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(svc))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/aqi", s.handleCurrentAQI)
	mux.HandleFunc("GET /api/v1/forecast", s.handleForecast)
	mux.HandleFunc("POST /api/v1/models/{city}/train", s.handleTrain)
	mux.HandleFunc("POST /api/v1/estimates", s.handleCreateEstimate)
	mux.HandleFunc("GET /api/v1/estimates", s.handleListEstimates)
	mux.HandleFunc("POST /api/v1/smoke", s.handleSmoke)
	mux.HandleFunc("GET /api/v1/areas", s.handleListAreas)
	mux.HandleFunc("POST /api/v1/areas/readings", s.handleRecordAreaReading)
	mux.HandleFunc("POST /api/v1/policy-simulations", s.handleSimulatePolicies)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}
