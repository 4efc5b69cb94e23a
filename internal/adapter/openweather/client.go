package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/air-quality-service/internal/domain"
	"github.com/couchcryptid/air-quality-service/internal/observability"
)

const defaultBaseURL = "https://api.openweathermap.org"

// Feed labels used for metrics.
const (
	feedGeocode  = "geocode"
	feedAir      = "openweather_air"
	feedForecast = "openweather_forecast"
)

var (
	errNoAPIKey     = errors.New("openweather API key not configured")
	errCityNotFound = errors.New("city not found")
	errNoData       = errors.New("empty response list")
)

// Client talks to the OpenWeather geocoding, air-pollution, and forecast
// APIs. It implements domain.Geocoder, domain.AirQualityFeed, and
// domain.WeatherFeed.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	geocoder   domain.Geocoder
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an OpenWeather client. Coordinates resolved for the
// air-pollution feed are cached in an LRU of cacheSize entries.
func NewClient(apiKey string, timeout time.Duration, cacheSize int, logger *slog.Logger, metrics *observability.Metrics) *Client {
	c := &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
	c.geocoder = NewCachedGeocoder(c, cacheSize, metrics)
	return c
}

// ForwardGeocode resolves a city name to coordinates. No match is an error.
func (c *Client) ForwardGeocode(ctx context.Context, city string) (domain.GeocodingResult, error) {
	params := url.Values{
		"q":     {city},
		"limit": {"1"},
	}

	var places []place
	if err := c.get(ctx, feedGeocode, "/geo/1.0/direct", params, &places); err != nil {
		return domain.GeocodingResult{}, err
	}
	if len(places) == 0 {
		return domain.GeocodingResult{}, fmt.Errorf("geocode %q: %w", city, errCityNotFound)
	}

	p := places[0]
	return domain.GeocodingResult{
		Lat:     p.Lat,
		Lon:     p.Lon,
		Name:    p.Name,
		Country: p.Country,
		State:   p.State,
	}, nil
}

// CurrentReading geocodes the city and derives AQI from the current PM2.5
// concentration.
func (c *Client) CurrentReading(ctx context.Context, city string) (domain.AQIReading, error) {
	loc, err := c.geocoder.ForwardGeocode(ctx, city)
	if err != nil {
		return domain.AQIReading{}, err
	}

	params := url.Values{
		"lat": {strconv.FormatFloat(loc.Lat, 'f', 4, 64)},
		"lon": {strconv.FormatFloat(loc.Lon, 'f', 4, 64)},
	}

	var resp airResponse
	if err := c.get(ctx, feedAir, "/data/2.5/air_pollution", params, &resp); err != nil {
		return domain.AQIReading{}, err
	}
	if len(resp.List) == 0 {
		return domain.AQIReading{}, fmt.Errorf("air pollution %q: %w", city, errNoData)
	}

	item := resp.List[0]
	observed := domain.Now()
	if item.Dt > 0 {
		observed = time.Unix(item.Dt, 0).UTC()
	}
	return domain.AQIReading{
		AQI:        domain.AQIFromPM25(item.Components.PM25),
		PM25:       item.Components.PM25,
		PM10:       item.Components.PM10,
		NO2:        item.Components.NO2,
		O3:         item.Components.O3,
		City:       city,
		ObservedAt: observed,
		Source:     domain.SourceOpenWeather,
	}, nil
}

// Forecast returns the 5-day/3-hour weather forecast in metric units.
func (c *Client) Forecast(ctx context.Context, city string) ([]domain.WeatherSample, error) {
	params := url.Values{
		"q":     {city},
		"units": {"metric"},
	}

	var resp forecastResponse
	if err := c.get(ctx, feedForecast, "/data/2.5/forecast", params, &resp); err != nil {
		return nil, err
	}

	samples := make([]domain.WeatherSample, 0, len(resp.List))
	for _, item := range resp.List {
		samples = append(samples, domain.WeatherSample{
			Time:         time.Unix(item.Dt, 0).UTC(),
			TemperatureC: item.Main.Temp,
			HumidityPct:  item.Main.Humidity,
			WindSpeed:    item.Wind.Speed,
		})
	}
	return samples, nil
}

func (c *Client) get(ctx context.Context, feed, path string, params url.Values, out any) error {
	if c.apiKey == "" {
		return errNoAPIKey
	}
	params.Set("appid", c.apiKey)

	start := time.Now()
	err := c.doRequest(ctx, c.baseURL+path+"?"+params.Encode(), feed, out)
	c.metrics.FeedAPIDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FeedRequests.WithLabelValues(feed, "error").Inc()
		return err
	}
	c.metrics.FeedRequests.WithLabelValues(feed, "success").Inc()
	return nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, feed string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", feed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("openweather API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", feed, err)
	}
	return nil
}

// OpenWeather API response types.

type place struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state"`
}

type airResponse struct {
	List []struct {
		Dt         int64 `json:"dt"`
		Components struct {
			PM25 float64 `json:"pm2_5"`
			PM10 float64 `json:"pm10"`
			NO2  float64 `json:"no2"`
			O3   float64 `json:"o3"`
		} `json:"components"`
	} `json:"list"`
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	} `json:"list"`
}
