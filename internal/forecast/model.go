package forecast

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/air-quality-service/internal/domain"
)

// modelVersion is bumped whenever the persisted layout changes.
const modelVersion = 1

// Model is a trained per-city AQI regressor.
type Model struct {
	Version   int       `msgpack:"version"`
	CityKey   string    `msgpack:"city_key"`
	Scaler    Scaler    `msgpack:"scaler"`
	Forest    Forest    `msgpack:"forest"`
	R2        float64   `msgpack:"r2"`
	TrainedAt time.Time `msgpack:"trained_at"`
}

// Fit trains a model on rows and records its in-sample R².
func Fit(ctx context.Context, cityKey string, rows []domain.FeatureRow, params ForestParams) (*Model, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("fit %s: %w", cityKey, errEmptyTrainingSet)
	}

	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x[i] = r.Features()
		y[i] = r.AQI
	}

	scaler := FitScaler(x)
	scaled := scaler.TransformAll(x)

	forest, err := FitForest(ctx, scaled, y, params)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", cityKey, err)
	}

	predicted := make([]float64, len(scaled))
	for i, row := range scaled {
		predicted[i] = forest.Predict(row)
	}

	return &Model{
		Version:   modelVersion,
		CityKey:   cityKey,
		Scaler:    scaler,
		Forest:    forest,
		R2:        stat.RSquaredFrom(predicted, y, nil),
		TrainedAt: domain.Now(),
	}, nil
}

// Predict returns the raw regressor output for a feature row.
func (m *Model) Predict(row domain.FeatureRow) float64 {
	return m.Forest.Predict(m.Scaler.Transform(row.Features()))
}
