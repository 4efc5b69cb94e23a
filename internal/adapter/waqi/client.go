package waqi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/air-quality-service/internal/domain"
	"github.com/couchcryptid/air-quality-service/internal/observability"
)

const (
	defaultBaseURL = "https://api.waqi.info"
	feedName       = "waqi"
	timeLayout     = "2006-01-02 15:04:05"
)

var errNoToken = errors.New("waqi token not configured")

// Client implements domain.AirQualityFeed using the WAQI city feed.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a WAQI feed client.
func NewClient(token string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// CurrentReading fetches the latest station reading for a city. Any non-"ok"
// status or non-numeric AQI is an error.
func (c *Client) CurrentReading(ctx context.Context, city string) (domain.AQIReading, error) {
	if c.token == "" {
		return domain.AQIReading{}, errNoToken
	}

	u := fmt.Sprintf("%s/feed/%s/?%s", c.baseURL, url.PathEscape(city), url.Values{"token": {c.token}}.Encode())

	start := time.Now()
	reading, err := c.fetch(ctx, u, city)
	c.metrics.FeedAPIDuration.WithLabelValues(feedName).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FeedRequests.WithLabelValues(feedName, "error").Inc()
		return domain.AQIReading{}, err
	}
	c.metrics.FeedRequests.WithLabelValues(feedName, "success").Inc()
	c.logger.Debug("waqi reading", "city", city, "aqi", reading.AQI)
	return reading, nil
}

func (c *Client) fetch(ctx context.Context, fullURL, city string) (domain.AQIReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.AQIReading{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.AQIReading{}, fmt.Errorf("waqi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.AQIReading{}, fmt.Errorf("waqi API error: status %d: %s", resp.StatusCode, body)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return domain.AQIReading{}, fmt.Errorf("decode response: %w", err)
	}
	if env.Status != "ok" {
		return domain.AQIReading{}, fmt.Errorf("waqi status %q: %s", env.Status, env.Data)
	}

	var d feedData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return domain.AQIReading{}, fmt.Errorf("decode feed data: %w", err)
	}
	return d.toReading(city)
}

// WAQI API response types.

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type feedData struct {
	AQI  json.RawMessage `json:"aqi"` // number, or "-" when the station has no data
	IAQI struct {
		PM25 *value `json:"pm25"`
		PM10 *value `json:"pm10"`
		NO2  *value `json:"no2"`
		O3   *value `json:"o3"`
	} `json:"iaqi"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	Time struct {
		S string `json:"s"`
	} `json:"time"`
}

type value struct {
	V float64 `json:"v"`
}

func (v *value) get() float64 {
	if v == nil {
		return 0
	}
	return v.V
}

func (d feedData) toReading(city string) (domain.AQIReading, error) {
	var aqi float64
	if err := json.Unmarshal(d.AQI, &aqi); err != nil {
		return domain.AQIReading{}, fmt.Errorf("waqi aqi not numeric: %s", d.AQI)
	}

	observed := domain.Now()
	if d.Time.S != "" {
		if t, err := time.Parse(timeLayout, d.Time.S); err == nil {
			observed = t
		}
	}

	name := d.City.Name
	if name == "" {
		name = city
	}

	return domain.AQIReading{
		AQI:        domain.ClampAQIInt(int(math.Round(aqi))),
		PM25:       d.IAQI.PM25.get(),
		PM10:       d.IAQI.PM10.get(),
		NO2:        d.IAQI.NO2.get(),
		O3:         d.IAQI.O3.get(),
		City:       name,
		ObservedAt: observed,
		Source:     domain.SourceWAQI,
	}, nil
}
