package vision

import (
	"context"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/couchcryptid/air-quality-service/internal/domain"
	"github.com/couchcryptid/air-quality-service/internal/observability"
)

// Detector returns labeled bounding boxes for an encoded image.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]domain.Detection, error)
}

// Predictor estimates AQI directly from an encoded image.
type Predictor interface {
	PredictAQI(ctx context.Context, image []byte) (int, error)
}

// Estimator turns photographs into AQI estimates. Detector and predictor are
// optional; a nil collaborator is treated as not configured.
type Estimator struct {
	detector      Detector
	predictor     Predictor
	minConfidence float64
	maxPixels     int
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// NewEstimator creates an Estimator. Images whose header declares more than
// maxPixels pixels are treated as undecodable; zero means DefaultMaxPixels.
func NewEstimator(detector Detector, predictor Predictor, minConfidence float64, maxPixels int, logger *slog.Logger, metrics *observability.Metrics) *Estimator {
	return &Estimator{
		detector:      detector,
		predictor:     predictor,
		minConfidence: minConfidence,
		maxPixels:     maxPixels,
		logger:        logger,
		metrics:       metrics,
	}
}

// DetectorEnabled reports whether object detection is configured.
func (e *Estimator) DetectorEnabled() bool {
	return e.detector != nil
}

// Estimate scores an image from haze and colour alone. With a baseline the
// prediction is baseline plus the haze rise; without one the image predictor
// supplies it, defaulting to 150. It never fails: sub-steps that cannot run
// fall back to neutral values and are listed in Degraded.
func (e *Estimator) Estimate(ctx context.Context, image []byte, baseAQI *int) domain.ImagePollutionEstimate {
	est := e.estimate(ctx, image, baseAQI)
	e.record(est)
	return est
}

// EstimateWithDetection adds the object detector's traffic contribution to
// the haze estimate. If the detector fails the haze-only estimate is returned
// with "detector" listed in Degraded.
func (e *Estimator) EstimateWithDetection(ctx context.Context, image []byte, baseAQI int) domain.ImagePollutionEstimate {
	est := e.estimate(ctx, image, &baseAQI)
	defer func() { e.record(est) }()

	if e.detector == nil || est.Error != "" {
		return est
	}

	detections, err := e.detector.Detect(ctx, image)
	if err != nil {
		e.logger.Warn("object detector failed, using haze estimate", "estimate_id", est.ID, "error", err)
		est.Degraded = append(est.Degraded, domain.StepDetector)
		return est
	}

	va := AnalyzeVehicles(detections, e.minConfidence)
	est.DetectionMethod = domain.MethodHazeDetector
	est.HazeSource = est.PollutionSource
	est.HazeRise = est.AQIRise
	est.Vehicles = &va

	if va.HasVehicles() {
		est.AQIRise += va.AQIRise
		est.PollutionSource = CombineSources(est.HazeSource, est.HazeRise, va)
	}
	est.PredictedAQI = withRise(baseAQI, est.AQIRise)
	est.HealthAlertLevel = domain.HealthAlertFor(est.PredictedAQI)
	return est
}

func (e *Estimator) estimate(ctx context.Context, data []byte, baseAQI *int) domain.ImagePollutionEstimate {
	est := domain.ImagePollutionEstimate{
		ID:              uuid.NewString(),
		BaseAQI:         baseAQI,
		DetectionMethod: domain.MethodHaze,
		ModelAvailable:  e.predictor != nil,
		CreatedAt:       domain.Now(),
	}

	img, err := Decode(data, e.maxPixels)
	if err != nil {
		e.logger.Warn("image decode failed", "estimate_id", est.ID, "error", err)
		est.Degraded = []string{domain.StepDecode}
		est.Error = err.Error()
		est.HazinessScore = NeutralHaziness
		est.PollutionSource = domain.SourceUnknown
		est.PredictedAQI = domain.DefaultAQI
		if baseAQI != nil {
			est.PredictedAQI = domain.ClampAQIInt(*baseAQI)
		}
		est.HealthAlertLevel = domain.HealthAlertFor(est.PredictedAQI)
		return est
	}

	rs, err := newRaster(img)
	if err != nil {
		est.Degraded = append(est.Degraded, domain.StepHaziness, domain.StepSource)
		est.HazinessScore = NeutralHaziness
		est.PollutionSource = domain.SourceUnknown
	} else {
		est.HazinessScore = rs.haziness()
		est.PollutionSource = rs.classify()
	}
	est.AQIRise = int(math.Round(est.HazinessScore * 100))

	if baseAQI != nil {
		est.PredictedAQI = withRise(*baseAQI, est.AQIRise)
	} else {
		est.PredictedAQI = e.predict(ctx, data, &est)
	}
	est.HealthAlertLevel = domain.HealthAlertFor(est.PredictedAQI)
	return est
}

func (e *Estimator) predict(ctx context.Context, data []byte, est *domain.ImagePollutionEstimate) int {
	if e.predictor == nil {
		return domain.DefaultAQI
	}
	aqi, err := e.predictor.PredictAQI(ctx, data)
	if err != nil {
		e.logger.Warn("image predictor failed, using default AQI", "estimate_id", est.ID, "error", err)
		est.Degraded = append(est.Degraded, domain.StepPredictor)
		est.ModelAvailable = false
		return domain.DefaultAQI
	}
	return domain.ClampAQIInt(aqi)
}

func (e *Estimator) record(est domain.ImagePollutionEstimate) {
	e.metrics.ImageEstimates.WithLabelValues(string(est.PollutionSource)).Inc()
	for _, step := range est.Degraded {
		e.metrics.DegradedSteps.WithLabelValues(step).Inc()
	}
}

// withRise adds a rise to a baseline and keeps the result on the AQI scale.
func withRise(base, rise int) int {
	return domain.ClampAQIInt(base + rise)
}
