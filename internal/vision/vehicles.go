package vision

import (
	"github.com/couchcryptid/air-quality-service/internal/domain"
)

// DefaultMinConfidence drops detections the detector is unsure about.
const DefaultMinConfidence = 0.25

// Per-class AQI impact of one detected object.
var classImpact = map[string]int{
	"car":        3,
	"truck":      8,
	"bus":        10,
	"motorcycle": 2,
	"bicycle":    0,
	"train":      15,
}

var (
	vehicleClasses = map[string]bool{"car": true, "truck": true, "bus": true, "motorcycle": true, "bicycle": true}
	heavyClasses   = map[string]bool{"truck": true, "bus": true, "train": true}
)

const (
	maxVehicleRise     = 100
	constructionHeavy  = 3
	significantTraffic = 5
)

// AnalyzeVehicles counts vehicle detections at or above minConfidence and
// converts them into an AQI rise. Classes without an impact weight are ignored.
func AnalyzeVehicles(detections []domain.Detection, minConfidence float64) domain.VehicleAnalysis {
	va := domain.VehicleAnalysis{Detections: []domain.Detection{}}

	for _, d := range detections {
		impact, ok := classImpact[d.Class]
		if !ok || d.Confidence < minConfidence {
			continue
		}
		va.Detections = append(va.Detections, d)
		if vehicleClasses[d.Class] {
			va.VehicleCount++
		}
		if heavyClasses[d.Class] {
			va.HeavyVehicleCount++
		}
		va.TotalImpact += impact
	}

	rise := float64(va.TotalImpact)
	switch {
	case va.VehicleCount > 20:
		rise *= 1.5
	case va.VehicleCount > 10:
		rise *= 1.2
	}
	va.AQIRise = min(int(rise), maxVehicleRise)

	switch {
	case va.HeavyVehicleCount >= constructionHeavy:
		va.Source = domain.SourceConstruction
	case va.VehicleCount >= significantTraffic:
		va.Source = domain.SourceVehicle
	}
	return va
}

// CombineSources picks the reported source when both haze and traffic
// contribute. Traffic wins when its rise exceeds the haze rise, or when it
// exceeds 20 and the haze source is not SMOKE. A traffic analysis without a
// source never overrides the haze label.
func CombineSources(hazeSource domain.PollutionSource, hazeRise int, va domain.VehicleAnalysis) domain.PollutionSource {
	if va.Source == "" {
		return hazeSource
	}
	if va.AQIRise > hazeRise {
		return va.Source
	}
	if va.AQIRise > 20 && hazeSource != domain.SourceSmoke {
		return va.Source
	}
	return hazeSource
}
