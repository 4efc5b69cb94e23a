// Package mlservice calls external object-detection and AQI-regression
// services over HTTP. Both accept a raw image body.
package mlservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/air-quality-service/internal/domain"
)

const contentTypeImage = "application/octet-stream"

type client struct {
	serviceURL string
	httpClient *http.Client
}

func newClient(serviceURL string, timeout time.Duration) client {
	return client{
		serviceURL: strings.TrimRight(serviceURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c client) post(ctx context.Context, path string, query url.Values, image []byte, out any) error {
	u := c.serviceURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(image))
	if err != nil {
		return fmt.Errorf("mlservice: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeImage)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mlservice: %s request: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mlservice: %s returned status %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("mlservice: decode %s response: %w", path, err)
	}
	return nil
}

// Health checks service connectivity.
func (c client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serviceURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("mlservice: create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mlservice: health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mlservice: health check returned status %d", resp.StatusCode)
	}
	return nil
}

// Detector implements vision.Detector against a POST /detect endpoint.
type Detector struct {
	client
	confidence float64
}

// NewDetector creates a detector client. confidence is forwarded as the
// service-side score threshold.
func NewDetector(serviceURL string, confidence float64, timeout time.Duration) *Detector {
	return &Detector{client: newClient(serviceURL, timeout), confidence: confidence}
}

type detectResponse struct {
	Detections []domain.Detection `json:"detections"`
}

// Detect returns the labeled boxes found in an image.
func (d *Detector) Detect(ctx context.Context, image []byte) ([]domain.Detection, error) {
	q := url.Values{"confidence": {strconv.FormatFloat(d.confidence, 'f', -1, 64)}}

	var resp detectResponse
	if err := d.post(ctx, "/detect", q, image, &resp); err != nil {
		return nil, err
	}
	if resp.Detections == nil {
		return []domain.Detection{}, nil
	}
	return resp.Detections, nil
}

// Predictor implements vision.Predictor against a POST /predict endpoint.
type Predictor struct {
	client
}

// NewPredictor creates an AQI regressor client.
func NewPredictor(serviceURL string, timeout time.Duration) *Predictor {
	return &Predictor{client: newClient(serviceURL, timeout)}
}

type predictResponse struct {
	AQI *float64 `json:"aqi"`
}

// PredictAQI returns the service's AQI estimate for an image, rounded to an
// integer.
func (p *Predictor) PredictAQI(ctx context.Context, image []byte) (int, error) {
	var resp predictResponse
	if err := p.post(ctx, "/predict", nil, image, &resp); err != nil {
		return 0, err
	}
	if resp.AQI == nil || math.IsNaN(*resp.AQI) {
		return 0, errors.New("mlservice: /predict response has no aqi")
	}
	return int(math.Round(*resp.AQI)), nil
}
