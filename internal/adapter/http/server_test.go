package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/air-quality-service/internal/adapter/http"
	"github.com/couchcryptid/air-quality-service/internal/adapter/history"
	"github.com/couchcryptid/air-quality-service/internal/domain"
	"github.com/couchcryptid/air-quality-service/internal/forecast"
	"github.com/couchcryptid/air-quality-service/internal/service"
)

type mockService struct {
	readyErr    error
	reading     domain.AQIReading
	result      forecast.Result
	forecastErr error
	trainErr    error
	estimate    domain.ImagePollutionEstimate
	entries     []history.Entry
	areas       []domain.AreaReading
	recordErr   error
	simResult   domain.SimulationResult
	simErr      error

	gotCity    string
	gotReq     service.EstimateRequest
	gotLimit   int
	gotReading domain.AreaReading
	gotSim     domain.SimulationRequest
}

func (m *mockService) CheckReadiness(context.Context) error { return m.readyErr }

func (m *mockService) CurrentReading(_ context.Context, city string) domain.AQIReading {
	m.gotCity = city
	r := m.reading
	r.City = city
	return r
}

func (m *mockService) Forecast(_ context.Context, city string) (forecast.Result, error) {
	m.gotCity = city
	return m.result, m.forecastErr
}

func (m *mockService) Train(_ context.Context, city string) (float64, error) {
	m.gotCity = city
	return 0.91, m.trainErr
}

func (m *mockService) Estimate(_ context.Context, req service.EstimateRequest) domain.ImagePollutionEstimate {
	m.gotReq = req
	return m.estimate
}

func (m *mockService) RecentEstimates(_ context.Context, limit int) ([]history.Entry, error) {
	m.gotLimit = limit
	return m.entries, nil
}

func (m *mockService) AreaReadings(context.Context) []domain.AreaReading {
	return m.areas
}

func (m *mockService) RecordAreaReading(_ context.Context, r domain.AreaReading) (domain.AreaReading, error) {
	m.gotReading = r
	if m.recordErr != nil {
		return domain.AreaReading{}, m.recordErr
	}
	return r.Normalize(), nil
}

func (m *mockService) SimulatePolicies(_ context.Context, req domain.SimulationRequest) (domain.SimulationResult, error) {
	m.gotSim = req
	return m.simResult, m.simErr
}

func newTestServer(svc *mockService) *httpadapter.Server {
	return newTestServerWithPixels(svc, 0)
}

func newTestServerWithPixels(svc *mockService, maxPixels int) *httpadapter.Server {
	return httpadapter.NewServer(":0", svc, 1<<20, maxPixels, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, srv http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func grayPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: 220}), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// --- health ---

func TestHealthzReturns200(t *testing.T) {
	rec := do(t, newTestServer(&mockService{}), http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := do(t, newTestServer(&mockService{}), http.MethodGet, "/readyz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := do(t, newTestServer(&mockService{readyErr: fmt.Errorf("warming up")}), http.MethodGet, "/readyz", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "warming up", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(&mockService{}), http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- current AQI and forecast ---

func TestCurrentAQI_DefaultsToDelhi(t *testing.T) {
	svc := &mockService{reading: domain.AQIReading{AQI: 245, Source: domain.SourceWAQI}}
	rec := do(t, newTestServer(svc), http.MethodGet, "/api/v1/aqi", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Delhi", svc.gotCity)

	body := decode(t, rec)
	assert.InDelta(t, 245, body["aqi"], 0)
	assert.Equal(t, "Poor", body["category"])
	assert.Equal(t, "HIGH", body["health_alert"])
	assert.Equal(t, "waqi", body["source"])
}

func TestCurrentAQI_CityTooLong(t *testing.T) {
	rec := do(t, newTestServer(&mockService{}), http.MethodGet, "/api/v1/aqi?city="+strings.Repeat("x", 101), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", decode(t, rec)["status"])
}

func TestForecast_Success(t *testing.T) {
	svc := &mockService{result: forecast.Result{
		Anchor: domain.AQIReading{AQI: 180},
		Points: []domain.ForecastPoint{{AQI: 182.3, Category: domain.CategoryModerate}},
	}}
	rec := do(t, newTestServer(svc), http.MethodGet, "/api/v1/forecast?city=Mumbai", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mumbai", svc.gotCity)

	body := decode(t, rec)
	assert.Equal(t, "Mumbai", body["city"])
	points, ok := body["points"].([]any)
	require.True(t, ok)
	require.Len(t, points, 1)
}

func TestForecast_EmptyPointsSerializeAsArray(t *testing.T) {
	svc := &mockService{result: forecast.Result{Points: []domain.ForecastPoint{}}}
	rec := do(t, newTestServer(svc), http.MethodGet, "/api/v1/forecast", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"points":[]`)
}

func TestForecast_Error(t *testing.T) {
	svc := &mockService{forecastErr: errors.New("boom")}
	rec := do(t, newTestServer(svc), http.MethodGet, "/api/v1/forecast", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "forecast unavailable", body["message"])
}

func TestTrain(t *testing.T) {
	svc := &mockService{}
	rec := do(t, newTestServer(svc), http.MethodPost, "/api/v1/models/Noida/train", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Noida", svc.gotCity)
	assert.InDelta(t, 0.91, decode(t, rec)["r2"], 1e-9)

	svc.trainErr = errors.New("no data")
	rec = do(t, newTestServer(svc), http.MethodPost, "/api/v1/models/Noida/train", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// --- estimates ---

func TestCreateEstimate(t *testing.T) {
	svc := &mockService{estimate: domain.ImagePollutionEstimate{
		ID:               "est-1",
		PredictedAQI:     180,
		PollutionSource:  domain.SourceSmoke,
		HealthAlertLevel: domain.AlertModerate,
	}}
	img := []byte("raw-image-bytes")
	rec := do(t, newTestServer(svc), http.MethodPost, "/api/v1/estimates?city=Delhi&base_aqi=150&detect=true&respiratory=true", img)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, img, svc.gotReq.Image)
	assert.Equal(t, "Delhi", svc.gotReq.City)
	assert.True(t, svc.gotReq.Detect)
	require.NotNil(t, svc.gotReq.BaseAQI)
	assert.Equal(t, 150, *svc.gotReq.BaseAQI)

	var body struct {
		Estimate        domain.ImagePollutionEstimate `json:"estimate"`
		RiskLevel       domain.RiskLevel              `json:"risk_level"`
		Recommendations []domain.Advice               `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "est-1", body.Estimate.ID)
	assert.Equal(t, domain.RiskModerate, body.RiskLevel)

	titles := make([]string, 0, len(body.Recommendations))
	for _, a := range body.Recommendations {
		titles = append(titles, a.Title)
	}
	assert.Contains(t, titles, "UNHEALTHY AIR")
	assert.Contains(t, titles, "Smoke Detected")
	assert.Contains(t, titles, "Respiratory Alert")
}

func TestCreateEstimate_NoProfile(t *testing.T) {
	svc := &mockService{estimate: domain.ImagePollutionEstimate{PredictedAQI: 40, PollutionSource: domain.SourceUnknown}}
	rec := do(t, newTestServer(svc), http.MethodPost, "/api/v1/estimates", []byte("img"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.NotContains(t, body, "risk_level")
	assert.Equal(t, []any{}, body["recommendations"])
	assert.Nil(t, svc.gotReq.BaseAQI)
	assert.Empty(t, svc.gotReq.City)
}

func TestCreateEstimate_DetectDefaultsCity(t *testing.T) {
	svc := &mockService{}
	rec := do(t, newTestServer(svc), http.MethodPost, "/api/v1/estimates?detect=1", []byte("img"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Delhi", svc.gotReq.City)
}

func TestCreateEstimate_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   []byte
		status int
	}{
		{"empty body", "/api/v1/estimates", nil, http.StatusBadRequest},
		{"base not a number", "/api/v1/estimates?base_aqi=high", []byte("img"), http.StatusBadRequest},
		{"base out of range", "/api/v1/estimates?base_aqi=501", []byte("img"), http.StatusBadRequest},
		{"detect not a bool", "/api/v1/estimates?detect=maybe", []byte("img"), http.StatusBadRequest},
		{"profile flag not a bool", "/api/v1/estimates?child=yes", []byte("img"), http.StatusBadRequest},
		{"too large", "/api/v1/estimates", bytes.Repeat([]byte{1}, 1<<20+1), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(&mockService{}), http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "error", decode(t, rec)["status"])
		})
	}
}

func TestListEstimates(t *testing.T) {
	svc := &mockService{entries: []history.Entry{{City: "Delhi", Estimate: domain.ImagePollutionEstimate{ID: "a"}}}}

	rec := do(t, newTestServer(svc), http.MethodGet, "/api/v1/estimates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, svc.gotLimit)
	assert.Contains(t, rec.Body.String(), `"id":"a"`)

	rec = do(t, newTestServer(svc), http.MethodGet, "/api/v1/estimates?limit=500", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, history.MaxListLimit, svc.gotLimit)

	rec = do(t, newTestServer(svc), http.MethodGet, "/api/v1/estimates?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- smoke frames ---

func TestSmoke_FullFrame(t *testing.T) {
	svc := &mockService{}
	rec := do(t, newTestServer(svc), http.MethodPost, "/api/v1/smoke?base_aqi=100", grayPNG(t, 50, 50))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["smoke_detected"])
	assert.InDelta(t, 100, body["smoke_percentage"], 1e-9)
	assert.InDelta(t, 100, body["base_aqi"], 0)
	assert.InDelta(t, 150, body["aqi_rise"], 0)
	assert.InDelta(t, 250, body["predicted_aqi"], 0)
	assert.Equal(t, "SEVERE", body["level"])
	assert.Empty(t, svc.gotCity, "explicit base skips the feed lookup")
}

func TestSmoke_UsesCityReading(t *testing.T) {
	svc := &mockService{reading: domain.AQIReading{AQI: 420}}
	rec := do(t, newTestServer(svc), http.MethodPost, "/api/v1/smoke?city=Gurgaon", grayPNG(t, 40, 40))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Gurgaon", svc.gotCity)
	assert.InDelta(t, 500, decode(t, rec)["predicted_aqi"], 0)
}

func TestSmoke_UndecodableFrame(t *testing.T) {
	rec := do(t, newTestServer(&mockService{}), http.MethodPost, "/api/v1/smoke?base_aqi=100", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "could not decode image", decode(t, rec)["message"])
}

func TestSmoke_TooManyPixels(t *testing.T) {
	svc := &mockService{}
	rec := do(t, newTestServerWithPixels(svc, 100), http.MethodPost, "/api/v1/smoke?base_aqi=100", grayPNG(t, 40, 40))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "image exceeds 100 pixels", decode(t, rec)["message"])

	rec = do(t, newTestServerWithPixels(svc, 1600), http.MethodPost, "/api/v1/smoke?base_aqi=100", grayPNG(t, 40, 40))
	assert.Equal(t, http.StatusOK, rec.Code, "limit is inclusive")
}

func TestSmoke_RoundsDisplayedValues(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 30, 30))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 0, 30, 7), image.NewUniform(color.Gray{Y: 220}), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	rec := do(t, newTestServer(&mockService{}), http.MethodPost, "/api/v1/smoke?base_aqi=100", buf.Bytes())
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.InDelta(t, 23.3, body["smoke_percentage"], 1e-9, "210 of 900 pixels")
	intensity, ok := body["smoke_intensity"].(float64)
	require.True(t, ok)
	assert.InDelta(t, math.Round(intensity*1000), intensity*1000, 1e-6, "three decimals")
}
