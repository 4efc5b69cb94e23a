// Command validate trains per-city models offline and checks the forecast
// invariants end to end: training-set shape, model persistence, and the
// anchored 24-point forecast. No network access is needed; feeds are replaced
// by fixed readings and a synthetic weather series.
//
// Usage:
//
//	go run ./cmd/validate -cities Delhi,Mumbai,Bangalore -anchors 40,180,420 -days 30
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/air-quality-service/internal/domain"
	"github.com/couchcryptid/air-quality-service/internal/forecast"
	"github.com/couchcryptid/air-quality-service/internal/observability"
)

// Forecast bounds checked by the forecast phase.
const (
	firstPointBand = 5.0
	// Steady state of the rubber band: d' = 0.7(d+15) + 15 settles at 85.
	maxSettledDrift = 85.0
	roundingSlack   = 0.05
)

var fixedNow = time.Date(2026, time.January, 10, 6, 0, 0, 0, time.UTC)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// fixedFeed always returns the same reading.
type fixedFeed struct{ aqi int }

func (f fixedFeed) CurrentReading(_ context.Context, city string) (domain.AQIReading, error) {
	return domain.AQIReading{AQI: f.aqi, City: city, ObservedAt: domain.Now(), Source: domain.SourceWAQI}, nil
}

// syntheticWeather returns a deterministic 3-hourly series.
type syntheticWeather struct{ seed uint64 }

func (w syntheticWeather) Forecast(_ context.Context, _ string) ([]domain.WeatherSample, error) {
	rng := rand.New(rand.NewPCG(w.seed, 7))
	out := make([]domain.WeatherSample, 40)
	for i := range out {
		out[i] = domain.WeatherSample{
			Time:         fixedNow.Add(time.Duration(3*(i+1)) * time.Hour),
			TemperatureC: 14 + 8*math.Sin(float64(i)/8*math.Pi) + rng.NormFloat64(),
			HumidityPct:  math.Round(55 + 20*rng.Float64()),
			WindSpeed:    math.Abs(2 + rng.NormFloat64()*1.5),
		}
	}
	return out, nil
}

func main() {
	cities := flag.String("cities", "Delhi,Mumbai,Bangalore,Kolkata,Chennai,Noida,Gurgaon,Jaipur", "comma-separated cities")
	anchors := flag.String("anchors", "40,180,420", "comma-separated anchor AQI values")
	days := flag.Int("days", 30, "days of synthetic training data")
	trees := flag.Int("trees", 40, "trees per forest")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	anchorValues, err := parseInts(*anchors)
	if err != nil || *days <= 0 || *trees <= 0 {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(splitList(*cities), anchorValues, *days, *trees, *seed); code != 0 {
		os.Exit(code)
	}
}

func run(cities []string, anchors []int, days, trees int, seed uint64) int {
	domain.SetClock(clockwork.NewFakeClockAt(fixedNow))
	defer domain.SetClock(nil)

	dir, err := os.MkdirTemp("", "aqi-validate-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: temp dir: %v\n", err)
		return 1
	}
	defer os.RemoveAll(dir)

	fmt.Println("=== AQI Forecast Validation ===")
	fmt.Println()

	params := forecast.DefaultForestParams()
	params.Trees = trees

	training := &phase{name: "Training set"}
	persistence := &phase{name: "Model persistence"}
	forecasts := &phase{name: "Anchored forecast"}

	ctx := context.Background()
	for _, city := range cities {
		for _, anchor := range anchors {
			label := fmt.Sprintf("%s@%d", city, anchor)

			validateTrainingSet(training, label, city, anchor, days, seed)

			store, err := forecast.NewFileStore(dir + "/" + strconv.Itoa(anchor))
			if err != nil {
				fmt.Fprintf(os.Stderr, "FATAL: model store: %v\n", err)
				return 1
			}
			f := forecast.New(fixedFeed{aqi: anchor}, nil, syntheticWeather{seed: seed}, forecast.NewModelCache(store, observability.NewMetricsForTesting()),
				forecast.Options{TrainingDays: days, Location: time.UTC, Forest: params, Seed: seed},
				slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())

			res, err := f.Forecast(ctx, city)
			if err != nil {
				forecasts.errorf("%s: forecast failed: %v", label, err)
				continue
			}
			validateForecast(forecasts, label, float64(anchor), res.Points)
			validatePersistence(ctx, persistence, label, store, city)
		}
	}

	phases := []*phase{training, persistence, forecasts}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = "FAIL"
			allPassed = false
		}
		fmt.Printf("[%s] %s\n", status, p.name)
		for _, e := range p.errors {
			fmt.Printf("       - %s\n", e)
		}
	}

	fmt.Println()
	if !allPassed {
		fmt.Println("RESULT: FAILED")
		return 1
	}
	fmt.Printf("RESULT: PASSED (%d cities x %d anchors)\n", len(cities), len(anchors))
	return 0
}

func validateTrainingSet(p *phase, label, city string, anchor, days int, seed uint64) {
	rows := forecast.SynthesizeTrainingSet(city, anchor, days, fixedNow, rand.New(rand.NewPCG(seed, seed>>1|1)))
	if want := days * 8; len(rows) != want {
		p.errorf("%s: %d rows, want %d", label, len(rows), want)
	}
	for i, r := range rows {
		if r.AQI < domain.MinAQI || r.AQI > domain.MaxAQI {
			p.errorf("%s: row %d AQI %.1f out of range", label, i, r.AQI)
		}
		if r.Hour%3 != 0 || r.DayOfWeek < 0 || r.DayOfWeek > 6 || r.Month < 1 || r.Month > 12 {
			p.errorf("%s: row %d has invalid calendar features %+v", label, i, r)
		}
	}
}

func validateForecast(p *phase, label string, anchor float64, points []domain.ForecastPoint) {
	if len(points) != forecast.Horizon {
		p.errorf("%s: %d points, want %d", label, len(points), forecast.Horizon)
		return
	}
	if d := math.Abs(points[0].AQI - anchor); d > firstPointBand+roundingSlack {
		p.errorf("%s: first point %.1f is %.1f from anchor", label, points[0].AQI, d)
	}

	categories := []domain.Category{
		domain.CategoryGood, domain.CategorySatisfactory, domain.CategoryModerate,
		domain.CategoryPoor, domain.CategoryVeryPoor, domain.CategorySevere,
	}
	for i, pt := range points {
		if pt.AQI < domain.MinAQI || pt.AQI > domain.MaxAQI {
			p.errorf("%s: point %d AQI %.1f out of range", label, i, pt.AQI)
		}
		if math.Abs(pt.AQI-anchor) > maxSettledDrift+roundingSlack {
			p.errorf("%s: point %d drifted %.1f from anchor", label, i, pt.AQI-anchor)
		}
		if !slices.Contains(categories, pt.Category) {
			p.errorf("%s: point %d has unknown category %q", label, i, pt.Category)
		}
		if i > 0 && !pt.Time.After(points[i-1].Time) {
			p.errorf("%s: point %d time %s not after previous", label, i, pt.Time)
		}
	}
}

func validatePersistence(ctx context.Context, p *phase, label string, store *forecast.FileStore, city string) {
	m, err := store.Load(ctx, domain.CityKey(city))
	if err != nil {
		p.errorf("%s: reload failed: %v", label, err)
		return
	}
	if math.IsNaN(m.R2) || m.R2 > 1 {
		p.errorf("%s: implausible R² %v", label, m.R2)
	}
	if len(m.Forest.Trees) == 0 {
		p.errorf("%s: reloaded forest is empty", label)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
