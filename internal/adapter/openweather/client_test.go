package openweather

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-quality-service/internal/domain"
	"github.com/couchcryptid/air-quality-service/internal/observability"
)

const (
	testKey           = "test-key"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) (*Client, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	c := &Client{
		apiKey:     testKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c.geocoder = NewCachedGeocoder(c, 10, metrics)
	return c, metrics
}

// owServer routes the three OpenWeather endpoints and counts geocode calls.
func owServer(t *testing.T, geocodeCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/geo/1.0/direct", func(w http.ResponseWriter, r *http.Request) {
		geocodeCalls.Add(1)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, testKey, r.URL.Query().Get("appid"))
		w.Header().Set(headerContentType, contentTypeJSON)
		if r.URL.Query().Get("q") == "Atlantis" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"name":"Delhi","lat":28.6517,"lon":77.2219,"country":"IN","state":"Delhi"}]`))
	})
	mux.HandleFunc("/data/2.5/air_pollution", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "28.6517", r.URL.Query().Get("lat"))
		assert.Equal(t, "77.2219", r.URL.Query().Get("lon"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"list":[{"dt":1768050000,"main":{"aqi":2},"components":{"pm2_5":10,"pm10":22.5,"no2":14.1,"o3":40.2}}]}`))
	})
	mux.HandleFunc("/data/2.5/forecast", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "Delhi", r.URL.Query().Get("q"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"list":[
			{"dt":1768050000,"main":{"temp":18.4,"humidity":62},"wind":{"speed":2.1}},
			{"dt":1768060800,"main":{"temp":16.9,"humidity":70},"wind":{"speed":1.4}}
		]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ForwardGeocode(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(owServer(t, &calls).URL)

	got, err := c.ForwardGeocode(context.Background(), "Delhi")
	require.NoError(t, err)
	assert.Equal(t, domain.GeocodingResult{Lat: 28.6517, Lon: 77.2219, Name: "Delhi", Country: "IN", State: "Delhi"}, got)
}

func TestClient_ForwardGeocode_NotFound(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(owServer(t, &calls).URL)

	_, err := c.ForwardGeocode(context.Background(), "Atlantis")
	require.ErrorIs(t, err, errCityNotFound)
}

func TestClient_CurrentReading(t *testing.T) {
	var calls atomic.Int32
	c, metrics := testClient(owServer(t, &calls).URL)

	got, err := c.CurrentReading(context.Background(), "Delhi")
	require.NoError(t, err)

	assert.Equal(t, 41, got.AQI)
	assert.Equal(t, 10.0, got.PM25)
	assert.Equal(t, 22.5, got.PM10)
	assert.Equal(t, domain.SourceOpenWeather, got.Source)
	assert.Equal(t, "Delhi", got.City)
	assert.Equal(t, time.Unix(1768050000, 0).UTC(), got.ObservedAt)

	_, err = c.CurrentReading(context.Background(), "delhi")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "coordinates should be cached")
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.FeedRequests.WithLabelValues("openweather_air", "success")), 0)
}

func TestClient_CurrentReading_EmptyList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/geo/1.0/direct", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"Delhi","lat":28.6,"lon":77.2}]`))
	})
	mux.HandleFunc("/data/2.5/air_pollution", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"list":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _ := testClient(srv.URL)
	_, err := c.CurrentReading(context.Background(), "Delhi")
	require.ErrorIs(t, err, errNoData)
}

func TestClient_Forecast(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(owServer(t, &calls).URL)

	got, err := c.Forecast(context.Background(), "Delhi")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.WeatherSample{
		Time:         time.Unix(1768050000, 0).UTC(),
		TemperatureC: 18.4,
		HumidityPct:  62,
		WindSpeed:    2.1,
	}, got[0])
	assert.True(t, got[1].Time.After(got[0].Time))
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"cod":401,"message":"Invalid API key"}`))
	}))
	defer srv.Close()

	c, metrics := testClient(srv.URL)
	_, err := c.Forecast(context.Background(), "Delhi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FeedRequests.WithLabelValues("openweather_forecast", "error")), 0)
}

func TestClient_NoAPIKey(t *testing.T) {
	c, _ := testClient("http://127.0.0.1:0")
	c.apiKey = ""

	_, err := c.Forecast(context.Background(), "Delhi")
	require.ErrorIs(t, err, errNoAPIKey)
	_, err = c.CurrentReading(context.Background(), "Delhi")
	require.ErrorIs(t, err, errNoAPIKey)
}

func TestNewClient_WiresCachedGeocoder(t *testing.T) {
	c := NewClient(testKey, time.Second, 5, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	_, ok := c.geocoder.(*CachedGeocoder)
	assert.True(t, ok)
}
