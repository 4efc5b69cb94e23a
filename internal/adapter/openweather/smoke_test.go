//go:build openweather

package openweather

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-quality-service/internal/observability"
)

// These tests hit the real OpenWeather API and require OPENWEATHER_API_KEY.
// Run with: go test -tags=openweather ./internal/adapter/openweather/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	key := os.Getenv("OPENWEATHER_API_KEY")
	if key == "" {
		t.Fatal("OPENWEATHER_API_KEY must be set to run smoke tests")
	}
	return NewClient(key, 10*time.Second, 10, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "Delhi")
	require.NoError(t, err)
	assert.InDelta(t, 28.65, result.Lat, 0.3, "lat should be near Delhi")
	assert.InDelta(t, 77.23, result.Lon, 0.3, "lon should be near Delhi")
	assert.Equal(t, "IN", result.Country)
}

func TestSmoke_CurrentReading(t *testing.T) {
	c := smokeClient(t)

	r, err := c.CurrentReading(context.Background(), "Delhi")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, r.AQI, 0)
	assert.LessOrEqual(t, r.AQI, 500)
}

func TestSmoke_Forecast(t *testing.T) {
	c := smokeClient(t)

	samples, err := c.Forecast(context.Background(), "Mumbai")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(samples), 24, "5-day/3-hour forecast has 40 steps")
}
