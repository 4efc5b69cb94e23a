package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/air-quality-service/internal/adapter/history"
	httpadapter "github.com/couchcryptid/air-quality-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/air-quality-service/internal/adapter/kafka"
	"github.com/couchcryptid/air-quality-service/internal/adapter/mlservice"
	"github.com/couchcryptid/air-quality-service/internal/adapter/openweather"
	"github.com/couchcryptid/air-quality-service/internal/adapter/waqi"
	"github.com/couchcryptid/air-quality-service/internal/config"
	"github.com/couchcryptid/air-quality-service/internal/forecast"
	"github.com/couchcryptid/air-quality-service/internal/observability"
	"github.com/couchcryptid/air-quality-service/internal/service"
	"github.com/couchcryptid/air-quality-service/internal/vision"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Feeds: WAQI first, OpenWeather as fallback and weather source.
	waqiClient := waqi.NewClient(cfg.WAQIToken, cfg.FeedTimeout, logger, metrics)
	owClient := openweather.NewClient(cfg.OpenWeatherAPIKey, cfg.FeedTimeout, cfg.GeocodeCacheSize, logger, metrics)
	if cfg.WAQIToken == "" {
		logger.Warn("WAQI_TOKEN not set, current readings will use fallbacks")
	}
	if cfg.OpenWeatherAPIKey == "" {
		logger.Warn("OPENWEATHER_API_KEY not set, forecasts will be empty")
	}

	modelStore, err := forecast.NewFileStore(cfg.ModelDir)
	if err != nil {
		logger.Error("failed to open model store", "dir", cfg.ModelDir, "error", err)
		os.Exit(1)
	}
	forecaster := forecast.New(waqiClient, owClient, owClient, forecast.NewModelCache(modelStore, metrics), forecast.Options{
		TrainingDays: cfg.TrainingDays,
		Location:     cfg.Location(),
	}, logger, metrics)

	// Optional image collaborators (feature-flagged via DETECTOR_URL / PREDICTOR_URL).
	var detector vision.Detector
	if cfg.DetectorURL != "" {
		detector = mlservice.NewDetector(cfg.DetectorURL, cfg.DetectorConfidence, cfg.CollaboratorTimeout)
		logger.Info("object detector enabled", "url", cfg.DetectorURL, "confidence", cfg.DetectorConfidence)
	}
	var predictor vision.Predictor
	if cfg.PredictorURL != "" {
		predictor = mlservice.NewPredictor(cfg.PredictorURL, cfg.CollaboratorTimeout)
		logger.Info("image AQI predictor enabled", "url", cfg.PredictorURL)
	}
	estimator := vision.NewEstimator(detector, predictor, cfg.DetectorConfidence, cfg.MaxImagePixels, logger, metrics)

	openCtx, cancelOpen := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := history.Open(openCtx, cfg.HistoryDSN)
	cancelOpen()
	if err != nil {
		logger.Error("failed to open estimate history", "error", err)
		os.Exit(1)
	}

	// Event publishing (feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS).
	var publisher service.EventPublisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger, metrics)
		publisher = kafkaPublisher
		logger.Info("event publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("event publishing disabled")
	}

	svc := service.New(forecaster, estimator, store, publisher, service.Options{
		WarmupCities: cfg.WarmupCities,
		AreaCacheTTL: cfg.AreaCacheTTL,
	}, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, cfg.MaxImageBytes, cfg.MaxImagePixels, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Warm up models in the background; /readyz flips when done.
	go func() {
		if err := svc.Run(ctx); err != nil {
			logger.Error("warm-up error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("history store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
