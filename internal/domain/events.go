package domain

import "time"

// Event types published to the sink topic.
const (
	EventForecast = "forecast"
	EventEstimate = "estimate"
)

// ForecastEvent is the published form of a completed forecast.
type ForecastEvent struct {
	City        string          `json:"city"`
	Anchor      AQIReading      `json:"anchor"`
	Points      []ForecastPoint `json:"points"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// EstimateEvent is the published form of an image estimate.
type EstimateEvent struct {
	City     string                 `json:"city,omitempty"`
	Estimate ImagePollutionEstimate `json:"estimate"`
}
