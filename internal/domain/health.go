package domain

// HealthProfile lists the conditions that raise a person's sensitivity to
// air pollution.
type HealthProfile struct {
	RespiratoryIssues bool `json:"respiratory_issues"`
	HeartDisease      bool `json:"heart_disease"`
	Allergies         bool `json:"allergies"`
	Elderly           bool `json:"elderly"`
	Child             bool `json:"child"`
	Pregnant          bool `json:"pregnant"`
}

// RiskLevel is a person's overall sensitivity tier.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskSevere   RiskLevel = "SEVERE"
)

// RiskLevel scores the profile: respiratory 3, heart 2, allergies 1,
// elderly or child 2, pregnant 2.
func (p HealthProfile) RiskLevel() RiskLevel {
	score := 0
	if p.RespiratoryIssues {
		score += 3
	}
	if p.HeartDisease {
		score += 2
	}
	if p.Allergies {
		score++
	}
	if p.Elderly || p.Child {
		score += 2
	}
	if p.Pregnant {
		score += 2
	}

	switch {
	case score >= 6:
		return RiskSevere
	case score >= 4:
		return RiskHigh
	case score >= 2:
		return RiskModerate
	default:
		return RiskLow
	}
}

// Advice priorities.
const (
	PriorityDanger  = "danger"
	PriorityWarning = "warning"
	PriorityInfo    = "info"
)

// Advice is a single user-facing alert or recommendation.
type Advice struct {
	Title    string `json:"title,omitempty"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// HealthAlerts returns dashboard alerts for a person with the given risk
// level at the given AQI.
func HealthAlerts(risk RiskLevel, aqi int) []Advice {
	var alerts []Advice
	switch risk {
	case RiskSevere:
		if aqi > 150 {
			alerts = append(alerts, Advice{Priority: PriorityDanger, Message: "Severe risk: stay indoors, avoid all outdoor activities and use an air purifier."})
		} else if aqi > 100 {
			alerts = append(alerts, Advice{Priority: PriorityWarning, Message: "High risk: limit outdoor exposure and wear an N95 mask if going out."})
		}
	case RiskHigh:
		if aqi > 200 {
			alerts = append(alerts, Advice{Priority: PriorityDanger, Message: "Stay indoors and avoid physical activity outdoors."})
		} else if aqi > 150 {
			alerts = append(alerts, Advice{Priority: PriorityWarning, Message: "Reduce outdoor activities and use a mask when going out."})
		}
	case RiskModerate:
		if aqi > 200 {
			alerts = append(alerts, Advice{Priority: PriorityWarning, Message: "Consider staying indoors during peak pollution hours."})
		}
	}
	return alerts
}

var sourceAdvice = map[PollutionSource]Advice{
	SourceSmoke:        {Title: "Smoke Detected", Message: "Avoid the area. Smoke contains harmful particulates and gases.", Priority: PriorityDanger},
	SourceDust:         {Title: "Dust Pollution", Message: "Close windows and wear a mask. Dust can aggravate respiratory issues.", Priority: PriorityWarning},
	SourceVehicle:      {Title: "Vehicle Emissions", Message: "Avoid main roads and use less congested routes if possible.", Priority: PriorityWarning},
	SourceFire:         {Title: "Fire/Burning Detected", Message: "Leave the area and report the fire to authorities if needed.", Priority: PriorityDanger},
	SourceConstruction: {Title: "Construction Dust", Message: "Avoid construction sites. Dust contains PM10 particles.", Priority: PriorityWarning},
}

// Recommendations builds personalized advice for an image estimate. A nil
// profile yields only the AQI- and source-based advice.
func Recommendations(e ImagePollutionEstimate, profile *HealthProfile) []Advice {
	aqi := e.PredictedAQI
	var recs []Advice

	switch {
	case aqi > 300:
		recs = append(recs, Advice{Title: "SEVERE ALERT", Message: "Stay indoors immediately. Close all windows. Use an air purifier.", Priority: PriorityDanger})
	case aqi > 200:
		recs = append(recs, Advice{Title: "HIGH POLLUTION", Message: "Avoid outdoor activities. Wear an N95 mask if you must go out.", Priority: PriorityWarning})
	case aqi > 150:
		recs = append(recs, Advice{Title: "UNHEALTHY AIR", Message: "Limit outdoor exposure. Sensitive groups should stay indoors.", Priority: PriorityWarning})
	case aqi > 100:
		recs = append(recs, Advice{Title: "MODERATE POLLUTION", Message: "Sensitive groups should limit prolonged outdoor activities.", Priority: PriorityInfo})
	}

	if a, ok := sourceAdvice[e.PollutionSource]; ok {
		recs = append(recs, a)
	}

	if profile != nil {
		if profile.RespiratoryIssues && aqi > 150 {
			recs = append(recs, Advice{Title: "Respiratory Alert", Message: "Keep your inhaler ready. Avoid any outdoor activity.", Priority: PriorityDanger})
		}
		if profile.HeartDisease && aqi > 150 {
			recs = append(recs, Advice{Title: "Heart Health Alert", Message: "Avoid physical exertion. Monitor your condition closely.", Priority: PriorityDanger})
		}
		if profile.Child || profile.Elderly {
			recs = append(recs, Advice{Title: "Vulnerable Group Alert", Message: "Extra caution advised. Stay in well-ventilated indoor spaces.", Priority: PriorityWarning})
		}
		if profile.Pregnant && aqi > 100 {
			recs = append(recs, Advice{Title: "Pregnancy Alert", Message: "Minimize outdoor exposure. Poor air quality can affect fetal development.", Priority: PriorityWarning})
		}
	}

	if aqi > 100 {
		recs = append(recs, Advice{Title: "Protective Measures", Message: "Wear an N95 mask outdoors. Use an air purifier indoors. Stay hydrated.", Priority: PriorityInfo})
	}
	return recs
}
