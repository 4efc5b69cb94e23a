package domain

// Category is the six-band forecast classification.
type Category string

const (
	CategoryGood         Category = "Good"
	CategorySatisfactory Category = "Satisfactory"
	CategoryModerate     Category = "Moderate"
	CategoryPoor         Category = "Poor"
	CategoryVeryPoor     Category = "Very Poor"
	CategorySevere       Category = "Severe"
)

// CategoryFor maps an AQI value to its forecast band. Boundary values map to
// the lower band.
func CategoryFor(aqi float64) Category {
	switch {
	case aqi <= 50:
		return CategoryGood
	case aqi <= 100:
		return CategorySatisfactory
	case aqi <= 200:
		return CategoryModerate
	case aqi <= 300:
		return CategoryPoor
	case aqi <= 400:
		return CategoryVeryPoor
	default:
		return CategorySevere
	}
}

// HealthAlert is the four-level alert attached to image estimates.
type HealthAlert string

const (
	AlertLow      HealthAlert = "LOW"
	AlertModerate HealthAlert = "MODERATE"
	AlertHigh     HealthAlert = "HIGH"
	AlertSevere   HealthAlert = "SEVERE"
)

// HealthAlertFor maps a predicted AQI to an alert level.
func HealthAlertFor(aqi int) HealthAlert {
	switch {
	case aqi <= 100:
		return AlertLow
	case aqi <= 200:
		return AlertModerate
	case aqi <= 300:
		return AlertHigh
	default:
		return AlertSevere
	}
}
