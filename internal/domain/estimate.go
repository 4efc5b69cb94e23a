package domain

import "time"

// PollutionSource is the dominant pollution source inferred from an image.
type PollutionSource string

const (
	SourceSmoke        PollutionSource = "SMOKE"
	SourceDust         PollutionSource = "DUST"
	SourceFire         PollutionSource = "FIRE"
	SourceVehicle      PollutionSource = "VEHICLE"
	SourceConstruction PollutionSource = "CONSTRUCTION"
	SourceUnknown      PollutionSource = "UNKNOWN"
)

// Detection is one labeled bounding box from an object detector.
// Box is [x1, y1, x2, y2] in pixels.
type Detection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"bbox"`
}

// VehicleAnalysis summarizes vehicle detections in an image.
// Source is empty when traffic is not significant.
type VehicleAnalysis struct {
	Detections        []Detection     `json:"detections"`
	VehicleCount      int             `json:"vehicle_count"`
	HeavyVehicleCount int             `json:"heavy_vehicle_count"`
	TotalImpact       int             `json:"total_impact"`
	AQIRise           int             `json:"aqi_rise"`
	Source            PollutionSource `json:"source,omitempty"`
}

// HasVehicles reports whether at least one vehicle was counted.
func (v VehicleAnalysis) HasVehicles() bool {
	return v.VehicleCount > 0
}

// Detection methods recorded on estimates.
const (
	MethodHaze         = "haze"
	MethodHazeDetector = "haze+detector"
)

// Degraded step names recorded on estimates when a sub-step fell back.
const (
	StepDecode    = "decode"
	StepHaziness  = "haziness"
	StepSource    = "source"
	StepPredictor = "predictor"
	StepDetector  = "detector"
)

// ImagePollutionEstimate is the result of analyzing a single photograph.
type ImagePollutionEstimate struct {
	ID               string          `json:"id"`
	PredictedAQI     int             `json:"predicted_aqi"`
	BaseAQI          *int            `json:"base_aqi,omitempty"`
	AQIRise          int             `json:"aqi_rise"`
	HazinessScore    float64         `json:"haziness_score"`
	PollutionSource  PollutionSource `json:"pollution_source"`
	HealthAlertLevel HealthAlert     `json:"health_alert_level"`
	ModelAvailable   bool            `json:"model_available"`
	DetectionMethod  string          `json:"detection_method"`

	// Haze-only signal, kept when the detector contributes.
	HazeSource PollutionSource `json:"haze_source,omitempty"`
	HazeRise   int             `json:"haze_rise,omitempty"`

	// Detector contribution; nil when detection was not run or failed.
	Vehicles *VehicleAnalysis `json:"vehicles,omitempty"`

	Degraded  []string  `json:"degraded,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsDegraded reports whether any sub-step substituted a default.
func (e ImagePollutionEstimate) IsDegraded() bool {
	return len(e.Degraded) > 0
}

// VehicleCount returns the detected vehicle count, or 0 without detection.
func (e ImagePollutionEstimate) VehicleCount() int {
	if e.Vehicles == nil {
		return 0
	}
	return e.Vehicles.VehicleCount
}

// HeavyVehicleCount returns the detected heavy-vehicle count, or 0 without detection.
func (e ImagePollutionEstimate) HeavyVehicleCount() int {
	if e.Vehicles == nil {
		return 0
	}
	return e.Vehicles.HeavyVehicleCount
}
