package domain

import (
	"slices"
	"strings"
	"time"
)

// ForecastPoint is one step of a 24-point AQI forecast.
type ForecastPoint struct {
	Time        time.Time `json:"time"`
	AQI         float64   `json:"aqi"`
	Category    Category  `json:"category"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Wind        float64   `json:"wind"`
}

// FeatureRow is a single training or inference sample for the AQI regressor.
// DayOfWeek counts from Monday = 0.
type FeatureRow struct {
	Hour      int
	DayOfWeek int
	Month     int
	Temp      float64
	Humidity  float64
	Wind      float64
	AQILag1   float64
	AQILag3   float64
	AQI       float64 // target; ignored at inference time
}

// FeatureCount is the width of [FeatureRow.Features].
const FeatureCount = 8

// Features returns the ordered feature vector expected by the regressor.
func (r FeatureRow) Features() []float64 {
	return []float64{
		float64(r.Hour),
		float64(r.DayOfWeek),
		float64(r.Month),
		r.Temp,
		r.Humidity,
		r.Wind,
		r.AQILag1,
		r.AQILag3,
	}
}

// MondayWeekday converts a time to a Monday = 0 ... Sunday = 6 weekday.
func MondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// CityProfile describes the synthetic pollution pattern of a city.
type CityProfile struct {
	BaseMultiplier float64
	WinterIncrease float64
	TrafficHours   []int
}

// IsTrafficHour reports whether hour is one of the profile's rush hours.
func (p CityProfile) IsTrafficHour(hour int) bool {
	return slices.Contains(p.TrafficHours, hour)
}

var cityProfiles = map[string]CityProfile{
	"delhi":     {BaseMultiplier: 1.2, WinterIncrease: 50, TrafficHours: []int{7, 8, 9, 18, 19, 20}},
	"mumbai":    {BaseMultiplier: 0.9, WinterIncrease: 20, TrafficHours: []int{8, 9, 10, 19, 20, 21}},
	"bangalore": {BaseMultiplier: 0.7, WinterIncrease: 15, TrafficHours: []int{8, 9, 18, 19}},
	"kolkata":   {BaseMultiplier: 1.0, WinterIncrease: 35, TrafficHours: []int{7, 8, 9, 18, 19}},
	"chennai":   {BaseMultiplier: 0.8, WinterIncrease: 10, TrafficHours: []int{8, 9, 18, 19}},
	"noida":     {BaseMultiplier: 1.15, WinterIncrease: 45, TrafficHours: []int{7, 8, 9, 18, 19, 20}},
	"gurgaon":   {BaseMultiplier: 1.1, WinterIncrease: 40, TrafficHours: []int{7, 8, 9, 18, 19, 20}},
}

var genericProfile = CityProfile{BaseMultiplier: 1.0, WinterIncrease: 30, TrafficHours: []int{8, 9, 18, 19}}

// ProfileFor returns the profile for a city, matched case-insensitively.
// Unknown cities get the generic profile.
func ProfileFor(city string) CityProfile {
	if p, ok := cityProfiles[strings.ToLower(strings.TrimSpace(city))]; ok {
		return p
	}
	return genericProfile
}

// CityKey normalizes a city name for model storage and caching:
// "New Delhi " -> "new_delhi". Every character outside [a-z0-9_-] becomes
// an underscore, so a key is always a single safe path element.
func CityKey(city string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, strings.ToLower(strings.TrimSpace(city)))
}
