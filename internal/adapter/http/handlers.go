package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/air-quality-service/internal/adapter/history"
	"github.com/couchcryptid/air-quality-service/internal/domain"
	"github.com/couchcryptid/air-quality-service/internal/service"
	"github.com/couchcryptid/air-quality-service/internal/vision"
)

const (
	defaultListLimit = 20
	maxCityLength    = 100
)

type aqiResponse struct {
	domain.AQIReading
	Category    domain.Category    `json:"category"`
	HealthAlert domain.HealthAlert `json:"health_alert"`
}

type forecastResponse struct {
	City   string                 `json:"city"`
	Anchor domain.AQIReading      `json:"anchor"`
	Points []domain.ForecastPoint `json:"points"`
}

type trainResponse struct {
	City string  `json:"city"`
	R2   float64 `json:"r2"`
}

type estimateResponse struct {
	Estimate        domain.ImagePollutionEstimate `json:"estimate"`
	RiskLevel       domain.RiskLevel              `json:"risk_level,omitempty"`
	Alerts          []domain.Advice               `json:"alerts,omitempty"`
	Recommendations []domain.Advice               `json:"recommendations"`
}

type smokeResponse struct {
	vision.SmokeAnalysis
	BaseAQI      int    `json:"base_aqi"`
	AQIRise      int    `json:"aqi_rise"`
	PredictedAQI int    `json:"predicted_aqi"`
	Level        string `json:"level"`
}

func (s *Server) handleCurrentAQI(w http.ResponseWriter, r *http.Request) {
	city, err := cityParam(r.URL.Query().Get("city"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reading := s.svc.CurrentReading(r.Context(), city)
	writeJSON(w, http.StatusOK, aqiResponse{
		AQIReading:  reading,
		Category:    domain.CategoryFor(float64(reading.AQI)),
		HealthAlert: domain.HealthAlertFor(reading.AQI),
	})
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	city, err := cityParam(r.URL.Query().Get("city"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.svc.Forecast(r.Context(), city)
	if err != nil {
		s.logger.Error("forecast failed", "city", city, "error", err)
		writeError(w, http.StatusInternalServerError, "forecast unavailable")
		return
	}
	writeJSON(w, http.StatusOK, forecastResponse{City: city, Anchor: res.Anchor, Points: res.Points})
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	city, err := cityParam(r.PathValue("city"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r2, err := s.svc.Train(r.Context(), city)
	if err != nil {
		s.logger.Error("training failed", "city", city, "error", err)
		writeError(w, http.StatusInternalServerError, "training failed")
		return
	}
	writeJSON(w, http.StatusOK, trainResponse{City: city, R2: r2})
}

func (s *Server) handleCreateEstimate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	city := strings.TrimSpace(q.Get("city"))

	base, err := optionalAQI(q.Get("base_aqi"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	detect, err := boolParam(q, "detect")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := profileParams(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	image, ok := s.readImage(w, r)
	if !ok {
		return
	}

	if city == "" && detect && base == nil {
		city = DefaultCity
	}
	est := s.svc.Estimate(r.Context(), service.EstimateRequest{Image: image, City: city, BaseAQI: base, Detect: detect})

	resp := estimateResponse{
		Estimate:        est,
		Recommendations: domain.Recommendations(est, profile),
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []domain.Advice{}
	}
	if profile != nil {
		resp.RiskLevel = profile.RiskLevel()
		resp.Alerts = domain.HealthAlerts(resp.RiskLevel, est.PredictedAQI)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListEstimates(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, history.MaxListLimit)
	}

	entries, err := s.svc.RecentEstimates(r.Context(), limit)
	if err != nil {
		s.logger.Error("list estimates failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"estimates": entries})
}

func (s *Server) handleSmoke(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	base, err := optionalAQI(q.Get("base_aqi"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	city, err := cityParam(q.Get("city"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, ok := s.readImage(w, r)
	if !ok {
		return
	}
	img, err := vision.Decode(data, s.maxImagePixels)
	if errors.Is(err, vision.ErrTooManyPixels) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("image exceeds %d pixels", s.maxImagePixels))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not decode image")
		return
	}
	analysis, err := vision.DetectSmoke(img)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var baseAQI int
	if base != nil {
		baseAQI = *base
	} else {
		baseAQI = s.svc.CurrentReading(r.Context(), city).AQI
	}
	rise := vision.FrameRise(analysis.Intensity)

	writeJSON(w, http.StatusOK, smokeResponse{
		SmokeAnalysis: analysis.Rounded(),
		BaseAQI:       baseAQI,
		AQIRise:       rise,
		PredictedAQI:  domain.ClampAQIInt(baseAQI + rise),
		Level:         vision.SmokeLevel(analysis.Intensity),
	})
}

// readImage reads the raw request body, writing an error response and
// returning false when it is empty or too large.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxImageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("image exceeds %d bytes", s.maxImageBytes))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "could not read request body")
		return nil, false
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "request body must contain an image")
		return nil, false
	}
	return data, true
}

func cityParam(v string) (string, error) {
	city := strings.TrimSpace(v)
	if city == "" {
		return DefaultCity, nil
	}
	if len(city) > maxCityLength {
		return "", errors.New("city name too long")
	}
	return city, nil
}

func optionalAQI(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < domain.MinAQI || n > domain.MaxAQI {
		return nil, errors.New("base_aqi must be an integer between 0 and 500")
	}
	return &n, nil
}

func boolParam(q url.Values, key string) (bool, error) {
	vals := q[key]
	if len(vals) == 0 || vals[0] == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(vals[0])
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return b, nil
}

// profileParams builds a health profile from query flags. It returns nil
// when no flag is present.
func profileParams(q url.Values) (*domain.HealthProfile, error) {
	var (
		p   domain.HealthProfile
		set bool
	)
	fields := []struct {
		key string
		dst *bool
	}{
		{"respiratory", &p.RespiratoryIssues},
		{"heart", &p.HeartDisease},
		{"allergies", &p.Allergies},
		{"elderly", &p.Elderly},
		{"child", &p.Child},
		{"pregnant", &p.Pregnant},
	}
	for _, f := range fields {
		if _, ok := q[f.key]; !ok {
			continue
		}
		v, err := boolParam(q, f.key)
		if err != nil {
			return nil, err
		}
		*f.dst = v
		set = true
	}
	if !set {
		return nil, nil
	}
	return &p, nil
}
