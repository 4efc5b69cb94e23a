package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/air-quality-service/internal/domain"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS image_estimates (
	id               TEXT PRIMARY KEY,
	city             TEXT NOT NULL DEFAULT '',
	predicted_aqi    INTEGER NOT NULL,
	pollution_source TEXT NOT NULL,
	health_alert     TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	payload          JSONB NOT NULL
	)`,
	"CREATE INDEX IF NOT EXISTS idx_image_estimates_created ON image_estimates (created_at DESC)",
	`CREATE TABLE IF NOT EXISTS area_readings (
	id           BIGSERIAL PRIMARY KEY,
	area         TEXT NOT NULL,
	aqi          INTEGER NOT NULL,
	pm25         DOUBLE PRECISION NOT NULL DEFAULT 0,
	pm10         DOUBLE PRECISION NOT NULL DEFAULT 0,
	no2          DOUBLE PRECISION NOT NULL DEFAULT 0,
	co           DOUBLE PRECISION NOT NULL DEFAULT 0,
	traffic      DOUBLE PRECISION NOT NULL DEFAULT 0,
	industrial   DOUBLE PRECISION NOT NULL DEFAULT 0,
	crop_burning DOUBLE PRECISION NOT NULL DEFAULT 0,
	construction DOUBLE PRECISION NOT NULL DEFAULT 0,
	other        DOUBLE PRECISION NOT NULL DEFAULT 0,
	observed_at  TIMESTAMPTZ NOT NULL
	)`,
	"CREATE INDEX IF NOT EXISTS idx_area_readings_area ON area_readings (area, observed_at DESC)",
}

// PostgresStore keeps estimates in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres: init schema: %w", err)
		}
	}
	return &PostgresStore{pool: pool}, nil
}

// Save inserts an estimate. Saving the same estimate ID twice fails.
func (s *PostgresStore) Save(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e.Estimate)
	if err != nil {
		return fmt.Errorf("postgres: marshal estimate: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO image_estimates (id, city, predicted_aqi, pollution_source, health_alert, created_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.Estimate.ID, e.City, e.Estimate.PredictedAQI, string(e.Estimate.PollutionSource),
		string(e.Estimate.HealthAlertLevel), e.Estimate.CreatedAt, payload,
	)
	if err != nil {
		return fmt.Errorf("postgres: save estimate %s: %w", e.Estimate.ID, err)
	}
	return nil
}

// List returns up to limit estimates, newest first. limit must be positive
// and is capped at MaxListLimit.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Entry, error) {
	limit, err := clampLimit(limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT city, payload FROM image_estimates
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list estimates: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			payload []byte
		)
		if err := rows.Scan(&e.City, &payload); err != nil {
			return nil, fmt.Errorf("postgres: scan estimate: %w", err)
		}
		if err := json.Unmarshal(payload, &e.Estimate); err != nil {
			return nil, fmt.Errorf("postgres: decode estimate: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveAreaReading appends a reading for its area.
func (s *PostgresStore) SaveAreaReading(ctx context.Context, r domain.AreaReading) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO area_readings (`+areaColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.Area, r.AQI, r.PM25, r.PM10, r.NO2, r.CO,
		r.Traffic, r.Industrial, r.CropBurning, r.Construction, r.Other, r.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save area reading %s: %w", r.Area, err)
	}
	return nil
}

// LatestAreaReadings returns the newest reading of every area, ordered by
// area name. Readings with the same timestamp resolve to the last inserted.
func (s *PostgresStore) LatestAreaReadings(ctx context.Context) ([]domain.AreaReading, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (area) `+areaColumns+`
		FROM area_readings
		ORDER BY area, observed_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list area readings: %w", err)
	}
	defer rows.Close()

	readings := []domain.AreaReading{}
	for rows.Next() {
		var r domain.AreaReading
		if err := rows.Scan(&r.Area, &r.AQI, &r.PM25, &r.PM10, &r.NO2, &r.CO,
			&r.Traffic, &r.Industrial, &r.CropBurning, &r.Construction, &r.Other, &r.ObservedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan area reading: %w", err)
		}
		r.ObservedAt = r.ObservedAt.UTC()
		readings = append(readings, r.Normalize())
	}
	return readings, rows.Err()
}

// Ping checks that the pool can reach the server.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases every pooled connection. It always returns nil.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
