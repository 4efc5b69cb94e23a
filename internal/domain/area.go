package domain

import (
	"errors"
	"strings"
	"time"
)

// AreaReading is the latest observation for a neighbourhood monitoring
// station, with the share of pollution attributed to each source in percent.
type AreaReading struct {
	Area         string    `json:"area"`
	AQI          int       `json:"aqi"`
	Category     Category  `json:"category"`
	PM25         float64   `json:"pm25"`
	PM10         float64   `json:"pm10"`
	NO2          float64   `json:"no2"`
	CO           float64   `json:"co"`
	Traffic      float64   `json:"traffic_contribution"`
	Industrial   float64   `json:"industrial_contribution"`
	CropBurning  float64   `json:"crop_burning_contribution"`
	Construction float64   `json:"construction_contribution"`
	Other        float64   `json:"other_contribution"`
	Primary      string    `json:"primary_source"`
	ObservedAt   time.Time `json:"observed_at"`
	Sample       bool      `json:"sample"`
}

// Contribution is one pollution source of an area.
type Contribution string

const (
	ContribTraffic      Contribution = "traffic"
	ContribIndustrial   Contribution = "industrial"
	ContribCropBurning  Contribution = "crop_burning"
	ContribConstruction Contribution = "construction"
	ContribOther        Contribution = "other"
)

// Share returns the percentage attributed to c.
func (r AreaReading) Share(c Contribution) float64 {
	switch c {
	case ContribTraffic:
		return r.Traffic
	case ContribIndustrial:
		return r.Industrial
	case ContribCropBurning:
		return r.CropBurning
	case ContribConstruction:
		return r.Construction
	case ContribOther:
		return r.Other
	}
	return 0
}

// PrimarySource names the largest contributor. Ties go to the source listed
// first: Traffic, Industry, Crop Burning, Construction, Other.
func (r AreaReading) PrimarySource() string {
	sources := []struct {
		name  string
		share float64
	}{
		{"Traffic", r.Traffic},
		{"Industry", r.Industrial},
		{"Crop Burning", r.CropBurning},
		{"Construction", r.Construction},
		{"Other", r.Other},
	}
	best := sources[0]
	for _, s := range sources[1:] {
		if s.share > best.share {
			best = s
		}
	}
	return best.name
}

// Normalize trims the area name, clamps the AQI, and fills the derived
// category and primary source.
func (r AreaReading) Normalize() AreaReading {
	r.Area = strings.TrimSpace(r.Area)
	r.AQI = ClampAQIInt(r.AQI)
	r.Category = CategoryFor(float64(r.AQI))
	r.Primary = r.PrimarySource()
	return r
}

// Validate reports whether r can be stored.
func (r AreaReading) Validate() error {
	if strings.TrimSpace(r.Area) == "" {
		return errors.New("area is required")
	}
	if r.AQI < MinAQI || r.AQI > MaxAQI {
		return errors.New("aqi must be between 0 and 500")
	}
	for _, v := range []float64{r.PM25, r.PM10, r.NO2, r.CO} {
		if v < 0 {
			return errors.New("pollutant concentrations must not be negative")
		}
	}
	for _, c := range []float64{r.Traffic, r.Industrial, r.CropBurning, r.Construction, r.Other} {
		if c < 0 || c > 100 {
			return errors.New("contributions must be between 0 and 100")
		}
	}
	return nil
}

// sampleAreas backs the area list when no stored readings exist.
var sampleAreas = []AreaReading{
	{Area: "Connaught Place", AQI: 185, PM25: 85, PM10: 145, NO2: 45, CO: 1.2, Traffic: 35, Industrial: 25, CropBurning: 20, Construction: 20},
	{Area: "Rohini", AQI: 245, PM25: 125, PM10: 195, NO2: 55, CO: 1.8, Traffic: 40, Industrial: 30, CropBurning: 15, Construction: 15},
	{Area: "Dwarka", AQI: 165, PM25: 75, PM10: 135, NO2: 40, CO: 1.0, Traffic: 35, Industrial: 25, CropBurning: 20, Construction: 20},
	{Area: "Noida", AQI: 275, PM25: 145, PM10: 225, NO2: 60, CO: 2.0, Traffic: 30, Industrial: 40, CropBurning: 15, Construction: 15},
	{Area: "Gurgaon", AQI: 195, PM25: 95, PM10: 165, NO2: 50, CO: 1.5, Traffic: 45, Industrial: 25, CropBurning: 15, Construction: 15},
	{Area: "Anand Vihar", AQI: 265, PM25: 140, PM10: 215, NO2: 65, CO: 1.9, Traffic: 50, Industrial: 25, CropBurning: 15, Construction: 10},
	{Area: "Punjabi Bagh", AQI: 215, PM25: 105, PM10: 175, NO2: 52, CO: 1.6, Traffic: 40, Industrial: 25, CropBurning: 20, Construction: 15},
	{Area: "Faridabad", AQI: 225, PM25: 110, PM10: 180, NO2: 53, CO: 1.7, Traffic: 30, Industrial: 40, CropBurning: 15, Construction: 15},
	{Area: "Ghaziabad", AQI: 255, PM25: 130, PM10: 205, NO2: 58, CO: 1.85, Traffic: 35, Industrial: 35, CropBurning: 15, Construction: 15},
	{Area: "Greater Noida", AQI: 235, PM25: 115, PM10: 190, NO2: 54, CO: 1.75, Traffic: 30, Industrial: 25, CropBurning: 15, Construction: 30},
	{Area: "Nehru Place", AQI: 205, PM25: 100, PM10: 170, NO2: 48, CO: 1.55, Traffic: 42, Industrial: 28, CropBurning: 15, Construction: 15},
	{Area: "Karol Bagh", AQI: 195, PM25: 92, PM10: 162, NO2: 47, CO: 1.45, Traffic: 38, Industrial: 27, CropBurning: 18, Construction: 17},
	{Area: "Lajpat Nagar", AQI: 185, PM25: 88, PM10: 155, NO2: 44, CO: 1.35, Traffic: 36, Industrial: 26, CropBurning: 19, Construction: 19},
	{Area: "Janakpuri", AQI: 175, PM25: 82, PM10: 148, NO2: 42, CO: 1.25, Traffic: 34, Industrial: 24, CropBurning: 21, Construction: 21},
	{Area: "Mayur Vihar", AQI: 220, PM25: 108, PM10: 182, NO2: 56, CO: 1.65, Traffic: 41, Industrial: 29, CropBurning: 15, Construction: 15},
	{Area: "Vasant Kunj", AQI: 155, PM25: 70, PM10: 128, NO2: 38, CO: 1.15, Traffic: 32, Industrial: 22, CropBurning: 23, Construction: 23},
	{Area: "Saket", AQI: 165, PM25: 76, PM10: 138, NO2: 40, CO: 1.2, Traffic: 33, Industrial: 23, CropBurning: 22, Construction: 22},
	{Area: "Pitampura", AQI: 210, PM25: 103, PM10: 172, NO2: 51, CO: 1.6, Traffic: 39, Industrial: 28, CropBurning: 17, Construction: 16},
	{Area: "Shahdara", AQI: 240, PM25: 120, PM10: 192, NO2: 59, CO: 1.75, Traffic: 35, Industrial: 35, CropBurning: 15, Construction: 15},
	{Area: "Okhla", AQI: 250, PM25: 128, PM10: 200, NO2: 62, CO: 1.82, Traffic: 32, Industrial: 38, CropBurning: 15, Construction: 15},
}

// SampleAreaReadings returns the built-in Delhi NCR readings stamped at now
// and marked as samples.
func SampleAreaReadings(now time.Time) []AreaReading {
	out := make([]AreaReading, len(sampleAreas))
	for i, r := range sampleAreas {
		r.ObservedAt = now
		r.Sample = true
		out[i] = r.Normalize()
	}
	return out
}
