package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/air-quality-service/internal/domain"
)

var sqliteSchema = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	`CREATE TABLE IF NOT EXISTS image_estimates (
	id               TEXT PRIMARY KEY,
	city             TEXT NOT NULL DEFAULT '',
	predicted_aqi    INTEGER NOT NULL,
	pollution_source TEXT NOT NULL,
	health_alert     TEXT NOT NULL,
	created_at       INTEGER NOT NULL,
	payload          TEXT NOT NULL
	)`,
	"CREATE INDEX IF NOT EXISTS idx_image_estimates_created ON image_estimates (created_at DESC)",
	`CREATE TABLE IF NOT EXISTS area_readings (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	area         TEXT NOT NULL,
	aqi          INTEGER NOT NULL,
	pm25         REAL NOT NULL DEFAULT 0,
	pm10         REAL NOT NULL DEFAULT 0,
	no2          REAL NOT NULL DEFAULT 0,
	co           REAL NOT NULL DEFAULT 0,
	traffic      REAL NOT NULL DEFAULT 0,
	industrial   REAL NOT NULL DEFAULT 0,
	crop_burning REAL NOT NULL DEFAULT 0,
	construction REAL NOT NULL DEFAULT 0,
	other        REAL NOT NULL DEFAULT 0,
	observed_at  INTEGER NOT NULL
	)`,
	"CREATE INDEX IF NOT EXISTS idx_area_readings_area ON area_readings (area, observed_at DESC)",
}

// SQLiteStore keeps estimates in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path in WAL mode.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: init schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Save inserts an estimate. Saving the same estimate ID twice fails.
func (s *SQLiteStore) Save(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e.Estimate)
	if err != nil {
		return fmt.Errorf("sqlite: marshal estimate: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO image_estimates (id, city, predicted_aqi, pollution_source, health_alert, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Estimate.ID, e.City, e.Estimate.PredictedAQI, string(e.Estimate.PollutionSource),
		string(e.Estimate.HealthAlertLevel), e.Estimate.CreatedAt.UnixNano(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save estimate %s: %w", e.Estimate.ID, err)
	}
	return nil
}

// List returns up to limit estimates, newest first. limit must be positive
// and is capped at MaxListLimit.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	limit, err := clampLimit(limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT city, payload FROM image_estimates
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list estimates: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			payload string
		)
		if err := rows.Scan(&e.City, &payload); err != nil {
			return nil, fmt.Errorf("sqlite: scan estimate: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Estimate); err != nil {
			return nil, fmt.Errorf("sqlite: decode estimate: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveAreaReading appends a reading for its area.
func (s *SQLiteStore) SaveAreaReading(ctx context.Context, r domain.AreaReading) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO area_readings (`+areaColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Area, r.AQI, r.PM25, r.PM10, r.NO2, r.CO,
		r.Traffic, r.Industrial, r.CropBurning, r.Construction, r.Other, r.ObservedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save area reading %s: %w", r.Area, err)
	}
	return nil
}

// LatestAreaReadings returns the newest reading of every area, ordered by
// area name. Readings with the same timestamp resolve to the last inserted.
func (s *SQLiteStore) LatestAreaReadings(ctx context.Context) ([]domain.AreaReading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+areaColumns+` FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY area ORDER BY observed_at DESC, id DESC) AS rn
			FROM area_readings
		)
		WHERE rn = 1
		ORDER BY area`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list area readings: %w", err)
	}
	defer rows.Close()

	readings := []domain.AreaReading{}
	for rows.Next() {
		var (
			r  domain.AreaReading
			ns int64
		)
		if err := rows.Scan(&r.Area, &r.AQI, &r.PM25, &r.PM10, &r.NO2, &r.CO,
			&r.Traffic, &r.Industrial, &r.CropBurning, &r.Construction, &r.Other, &ns); err != nil {
			return nil, fmt.Errorf("sqlite: scan area reading: %w", err)
		}
		r.ObservedAt = time.Unix(0, ns).UTC()
		readings = append(readings, r.Normalize())
	}
	return readings, rows.Err()
}

// Ping checks that the database file is still reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
