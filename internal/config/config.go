package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // forecast time zones must resolve in minimal containers

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	MaxImageBytes   int64
	MaxImagePixels  int

	// Feed configuration.
	WAQIToken         string
	OpenWeatherAPIKey string
	FeedTimeout       time.Duration
	GeocodeCacheSize  int

	// Forecast model configuration.
	ModelDir         string
	TrainingDays     int
	ForecastTimezone string
	WarmupCities     []string

	// Optional image collaborators; empty URL disables them.
	DetectorURL         string
	DetectorConfidence  float64
	PredictorURL        string
	CollaboratorTimeout time.Duration

	// Estimate history store: a sqlite path or a postgres:// URL.
	HistoryDSN   string
	// AreaCacheTTL is how long the latest-per-area AQI listing is reused.
	AreaCacheTTL time.Duration

	// Event publishing.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	feedTimeout, err := parsePositiveDuration("FEED_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	collaboratorTimeout, err := parsePositiveDuration("COLLABORATOR_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	trainingDays, err := parsePositiveInt("TRAINING_DAYS", 60)
	if err != nil {
		return nil, err
	}

	confidence, err := parseConfidence()
	if err != nil {
		return nil, err
	}

	maxImageBytes, err := parsePositiveInt("MAX_IMAGE_BYTES", 10<<20)
	if err != nil {
		return nil, err
	}

	maxImagePixels, err := parsePositiveInt("MAX_IMAGE_PIXELS", 25_000_000)
	if err != nil {
		return nil, err
	}

	geocodeCacheSize, err := parsePositiveInt("GEOCODE_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	areaCacheTTL, err := parsePositiveDuration("AREA_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}

	tz := sharedcfg.EnvOrDefault("FORECAST_TIMEZONE", "Asia/Kolkata")
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid FORECAST_TIMEZONE: %w", err)
	}

	brokers := os.Getenv("KAFKA_BROKERS")
	kafkaEnabled := brokers != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		MaxImageBytes:   int64(maxImageBytes),
		MaxImagePixels:  maxImagePixels,

		WAQIToken:         os.Getenv("WAQI_TOKEN"),
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		FeedTimeout:       feedTimeout,
		GeocodeCacheSize:  geocodeCacheSize,

		ModelDir:         sharedcfg.EnvOrDefault("MODEL_DIR", "ml_models"),
		TrainingDays:     trainingDays,
		ForecastTimezone: tz,
		WarmupCities:     parseList(sharedcfg.EnvOrDefault("WARMUP_CITIES", "Delhi")),

		DetectorURL:         os.Getenv("DETECTOR_URL"),
		DetectorConfidence:  confidence,
		PredictorURL:        os.Getenv("PREDICTOR_URL"),
		CollaboratorTimeout: collaboratorTimeout,

		HistoryDSN:   sharedcfg.EnvOrDefault("HISTORY_DSN", "aqi_history.db"),
		AreaCacheTTL: areaCacheTTL,

		KafkaEnabled: kafkaEnabled,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "air-quality-events"),
	}
	if brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}
	if cfg.ModelDir == "" {
		return nil, errors.New("MODEL_DIR is required")
	}

	return cfg, nil
}

// Location returns the forecast time zone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ForecastTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseConfidence() (float64, error) {
	s := sharedcfg.EnvOrDefault("DETECTOR_CONFIDENCE", "0.25")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 1 {
		return 0, errors.New("invalid DETECTOR_CONFIDENCE: must be between 0 and 1")
	}
	return v, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
