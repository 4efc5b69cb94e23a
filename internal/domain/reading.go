package domain

import (
	"math"
	"time"
)

// AQI scale bounds.
const (
	MinAQI = 0
	MaxAQI = 500

	// DefaultAQI is substituted when no feed can be reached.
	DefaultAQI = 150
)

// ReadingSource identifies which feed produced a reading.
type ReadingSource string

const (
	SourceWAQI        ReadingSource = "waqi"
	SourceOpenWeather ReadingSource = "openweather"
	SourceDefault     ReadingSource = "default"
)

// AQIReading is a point-in-time air-quality observation for a city.
type AQIReading struct {
	AQI        int           `json:"aqi"`
	PM25       float64       `json:"pm25"`
	PM10       float64       `json:"pm10"`
	NO2        float64       `json:"no2"`
	O3         float64       `json:"o3"`
	City       string        `json:"city"`
	ObservedAt time.Time     `json:"observed_at"`
	Source     ReadingSource `json:"source"`
	Fallback   bool          `json:"fallback"`
}

// DefaultReading is the reading returned when every feed has failed.
func DefaultReading(city string) AQIReading {
	return AQIReading{
		AQI:        DefaultAQI,
		City:       city,
		ObservedAt: Now(),
		Source:     SourceDefault,
		Fallback:   true,
	}
}

// WeatherSample is one step of an external weather forecast.
type WeatherSample struct {
	Time         time.Time `json:"time"`
	TemperatureC float64   `json:"temperature_c"`
	HumidityPct  float64   `json:"humidity_pct"`
	WindSpeed    float64   `json:"wind_speed"`
}

// ClampAQI limits v to the [0,500] AQI scale.
func ClampAQI(v float64) float64 {
	return math.Max(MinAQI, math.Min(MaxAQI, v))
}

// ClampAQIInt limits v to the [0,500] AQI scale.
func ClampAQIInt(v int) int {
	if v < MinAQI {
		return MinAQI
	}
	if v > MaxAQI {
		return MaxAQI
	}
	return v
}

// pm25Breakpoints is the US EPA PM2.5 table: concentration range → AQI range.
var pm25Breakpoints = []struct {
	concLo, concHi float64
	aqiLo, aqiHi   float64
}{
	{0.0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 350.4, 301, 400},
	{350.5, 500.4, 401, 500},
}

// AQIFromPM25 converts a PM2.5 concentration (µg/m³) to AQI using the
// piecewise-linear breakpoint formula. Values above the last breakpoint are
// extrapolated on the top segment and then clamped to 500.
func AQIFromPM25(pm25 float64) int {
	for i, bp := range pm25Breakpoints {
		if pm25 <= bp.concHi || i == len(pm25Breakpoints)-1 {
			v := (bp.aqiHi-bp.aqiLo)/(bp.concHi-bp.concLo)*(pm25-bp.concLo) + bp.aqiLo
			return ClampAQIInt(int(v))
		}
	}
	return MaxAQI
}
