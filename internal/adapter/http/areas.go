package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/couchcryptid/air-quality-service/internal/domain"
	"github.com/couchcryptid/air-quality-service/internal/service"
)

// maxJSONBytes caps JSON request bodies.
const maxJSONBytes = 64 << 10

type areaReadingRequest struct {
	Area         string     `json:"area"`
	AQI          *int       `json:"aqi"`
	PM25         float64    `json:"pm25"`
	PM10         float64    `json:"pm10"`
	NO2          float64    `json:"no2"`
	CO           float64    `json:"co"`
	Traffic      float64    `json:"traffic_contribution"`
	Industrial   float64    `json:"industrial_contribution"`
	CropBurning  float64    `json:"crop_burning_contribution"`
	Construction float64    `json:"construction_contribution"`
	Other        float64    `json:"other_contribution"`
	ObservedAt   *time.Time `json:"observed_at"`
}

type simulationRequest struct {
	Policies            []domain.Policy `json:"policies"`
	ImplementationLevel *float64        `json:"implementation_level"`
	Duration            *int            `json:"duration"`
	Area                string          `json:"area"`
}

func (s *Server) handleListAreas(w http.ResponseWriter, r *http.Request) {
	areas := s.svc.AreaReadings(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"areas": areas, "count": len(areas)})
}

func (s *Server) handleRecordAreaReading(w http.ResponseWriter, r *http.Request) {
	var req areaReadingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AQI == nil {
		writeError(w, http.StatusBadRequest, "aqi is required")
		return
	}

	reading := domain.AreaReading{
		Area:         req.Area,
		AQI:          *req.AQI,
		PM25:         req.PM25,
		PM10:         req.PM10,
		NO2:          req.NO2,
		CO:           req.CO,
		Traffic:      req.Traffic,
		Industrial:   req.Industrial,
		CropBurning:  req.CropBurning,
		Construction: req.Construction,
		Other:        req.Other,
	}
	if req.ObservedAt != nil {
		reading.ObservedAt = req.ObservedAt.UTC()
	}

	saved, err := s.svc.RecordAreaReading(r.Context(), reading)
	switch {
	case errors.Is(err, service.ErrInvalidAreaReading):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNoHistory):
		writeError(w, http.StatusServiceUnavailable, "area history unavailable")
	case err != nil:
		s.logger.Error("record area reading failed", "area", reading.Area, "error", err)
		writeError(w, http.StatusInternalServerError, "could not store reading")
	default:
		writeJSON(w, http.StatusCreated, saved)
	}
}

func (s *Server) handleSimulatePolicies(w http.ResponseWriter, r *http.Request) {
	var req simulationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sim := domain.SimulationRequest{
		Policies:            req.Policies,
		ImplementationLevel: domain.DefaultImplementationLevel,
		DurationDays:        domain.DefaultSimulationDays,
		Area:                req.Area,
	}
	if req.ImplementationLevel != nil {
		sim.ImplementationLevel = *req.ImplementationLevel
	}
	if req.Duration != nil {
		sim.DurationDays = *req.Duration
	}

	res, err := s.svc.SimulatePolicies(r.Context(), sim)
	switch {
	case errors.Is(err, domain.ErrUnknownArea):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// decodeJSON reads a single JSON object into dst, writing an error response
// and returning false when the body is too large or malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", maxJSONBytes))
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
