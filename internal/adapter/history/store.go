// Package history persists image estimates so recent results can be listed,
// and per-area readings so the latest value of each area can be browsed.
// A DSN starting with postgres:// or postgresql:// selects PostgreSQL; any
// other value is treated as a SQLite file path.
package history

import (
	"context"
	"errors"
	"strings"

	"github.com/couchcryptid/air-quality-service/internal/domain"
)

// MaxListLimit caps how many entries List returns.
const MaxListLimit = 100

var errInvalidLimit = errors.New("limit must be positive")

// Entry is a stored estimate together with the city it was taken in.
type Entry struct {
	City     string                        `json:"city,omitempty"`
	Estimate domain.ImagePollutionEstimate `json:"estimate"`
}

// Store saves and lists estimates, newest first, and keeps area readings.
type Store interface {
	Save(ctx context.Context, e Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
	SaveAreaReading(ctx context.Context, r domain.AreaReading) error
	LatestAreaReadings(ctx context.Context) ([]domain.AreaReading, error)
	Ping(ctx context.Context) error
	Close() error
}

// areaColumns is the column list shared by area reading inserts and selects.
const areaColumns = "area, aqi, pm25, pm10, no2, co, traffic, industrial, crop_burning, construction, other, observed_at"

// Open returns the store selected by dsn and ensures its schema exists.
func Open(ctx context.Context, dsn string) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		s, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := OpenSQLite(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func clampLimit(limit int) (int, error) {
	if limit <= 0 {
		return 0, errInvalidLimit
	}
	return min(limit, MaxListLimit), nil
}
