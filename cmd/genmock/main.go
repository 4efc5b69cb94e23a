// Command genmock renders synthetic camera frames and writes them as PNG
// fixtures together with a JSON manifest of the scores the vision package
// assigns to each. The manifest is produced by the real analysis code, so
// it can be diffed after tuning changes.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/frames -base-aqi 100
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/air-quality-service/internal/domain"
	"github.com/couchcryptid/air-quality-service/internal/observability"
	"github.com/couchcryptid/air-quality-service/internal/vision"
)

const frameW, frameH = 160, 120

var (
	fireRed   = color.NRGBA{R: 255, A: 255}
	smokeGray = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	dustBrown = color.NRGBA{R: 200, G: 150, B: 50, A: 255}
	nightBlue = color.NRGBA{B: 100, A: 255}
)

// frame is one fixture: a name and a renderer.
type frame struct {
	name   string
	render func() *image.NRGBA
}

// manifestEntry records what the vision package reports for a fixture.
type manifestEntry struct {
	File           string                 `json:"file"`
	Haziness       float64                `json:"haziness"`
	Source         domain.PollutionSource `json:"source"`
	SmokeDetected  bool                   `json:"smoke_detected"`
	SmokeIntensity float64                `json:"smoke_intensity"`
	SmokeLevel     string                 `json:"smoke_level"`
	FrameRise      int                    `json:"frame_rise"`
	BaseAQI        int                    `json:"base_aqi"`
	PredictedAQI   int                    `json:"predicted_aqi"`
	HealthAlert    domain.HealthAlert     `json:"health_alert"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for PNG fixtures and manifest.json")
	baseAQI := flag.Int("base-aqi", 100, "baseline AQI used for the estimate column")
	seed := flag.Uint64("seed", 7, "noise seed for the clear frame")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *baseAQI < domain.MinAQI || *baseAQI > domain.MaxAQI {
		return fmt.Errorf("base-aqi %d outside 0-500", *baseAQI)
	}

	// Fixed clock keeps estimate timestamps reproducible.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	frames := []frame{
		{"clear", func() *image.NRGBA { return noise(*seed) }},
		{"smoke", func() *image.NRGBA { return solid(smokeGray) }},
		{"hazy", func() *image.NRGBA { return checkerboard(195, 205) }},
		{"dust", func() *image.NRGBA { return split(0.25, dustBrown, nightBlue) }},
		{"fire", func() *image.NRGBA { return split(0.15, fireRed, smokeGray) }},
	}

	estimator := vision.NewEstimator(nil, nil, vision.DefaultMinConfidence, vision.DefaultMaxPixels,
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())

	manifest := make(map[string]manifestEntry, len(frames))
	for _, f := range frames {
		entry, err := writeFrame(*out, f, estimator, *baseAQI)
		if err != nil {
			return fmt.Errorf("frame %s: %w", f.name, err)
		}
		manifest[f.name] = entry
		log.Printf("%s: haziness=%.3f source=%s predicted=%d", f.name, entry.Haziness, entry.Source, entry.PredictedAQI)
	}

	return writeJSON(filepath.Join(*out, "manifest.json"), manifest)
}

func writeFrame(dir string, f frame, estimator *vision.Estimator, baseAQI int) (manifestEntry, error) {
	img := f.render()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return manifestEntry{}, err
	}
	file := f.name + ".png"
	if err := os.WriteFile(filepath.Join(dir, file), buf.Bytes(), 0o600); err != nil {
		return manifestEntry{}, err
	}

	smoke, err := vision.DetectSmoke(img)
	if err != nil {
		return manifestEntry{}, err
	}
	est := estimator.Estimate(context.Background(), buf.Bytes(), &baseAQI)

	return manifestEntry{
		File:           file,
		Haziness:       est.HazinessScore,
		Source:         est.PollutionSource,
		SmokeDetected:  smoke.Detected,
		SmokeIntensity: smoke.Intensity,
		SmokeLevel:     vision.SmokeLevel(smoke.Intensity),
		FrameRise:      vision.FrameRise(smoke.Intensity),
		BaseAQI:        baseAQI,
		PredictedAQI:   est.PredictedAQI,
		HealthAlert:    est.HealthAlertLevel,
	}, nil
}

func solid(c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, frameW, frameH))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// split paints the top frac of rows with top and the rest with bottom.
func split(frac float64, top, bottom color.Color) *image.NRGBA {
	img := solid(bottom)
	rows := int(float64(frameH) * frac)
	draw.Draw(img, image.Rect(0, 0, frameW, rows), image.NewUniform(top), image.Point{}, draw.Src)
	return img
}

func checkerboard(a, b uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, frameW, frameH))
	for y := range frameH {
		for x := range frameW {
			v := a
			if (x+y)%2 == 1 {
				v = b
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func noise(seed uint64) *image.NRGBA {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewNRGBA(image.Rect(0, 0, frameW, frameH))
	for y := range frameH {
		for x := range frameW {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(rng.IntN(256)),
				G: uint8(rng.IntN(256)),
				B: uint8(rng.IntN(256)),
				A: 255,
			})
		}
	}
	return img
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
