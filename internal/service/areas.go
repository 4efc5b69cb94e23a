package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/air-quality-service/internal/domain"
)

var (
	// ErrInvalidAreaReading wraps validation failures of a submitted reading.
	ErrInvalidAreaReading = errors.New("invalid area reading")
	// ErrNoHistory is returned when an operation needs the history store and
	// none is configured.
	ErrNoHistory = errors.New("history store is not configured")
)

// areaCache holds the last stored area readings until expires.
type areaCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	readings []domain.AreaReading
	expires  time.Time
}

// AreaReadings returns the latest reading of every area. Stored readings are
// reused until the cache TTL passes. When nothing is stored, or the store
// fails, the built-in sample readings are returned and not cached.
func (s *Service) AreaReadings(ctx context.Context) []domain.AreaReading {
	now := domain.Now()

	s.areas.mu.Lock()
	defer s.areas.mu.Unlock()

	if s.areas.readings != nil && now.Before(s.areas.expires) {
		return slices.Clone(s.areas.readings)
	}
	s.areas.readings = nil

	if s.history != nil {
		readings, err := s.history.LatestAreaReadings(ctx)
		switch {
		case err != nil:
			s.logger.Warn("load area readings failed, using samples", "error", err)
		case len(readings) > 0:
			if s.areas.ttl > 0 {
				s.areas.readings = readings
				s.areas.expires = now.Add(s.areas.ttl)
			}
			return slices.Clone(readings)
		}
	}
	return domain.SampleAreaReadings(now)
}

// RecordAreaReading validates and stores a reading, stamping it with the
// current time when it has none. The area cache is dropped so the next
// AreaReadings call sees it.
func (s *Service) RecordAreaReading(ctx context.Context, r domain.AreaReading) (domain.AreaReading, error) {
	if s.history == nil {
		return domain.AreaReading{}, ErrNoHistory
	}
	if err := r.Validate(); err != nil {
		return domain.AreaReading{}, fmt.Errorf("%w: %w", ErrInvalidAreaReading, err)
	}
	if r.ObservedAt.IsZero() {
		r.ObservedAt = domain.Now()
	}
	r.Sample = false
	r = r.Normalize()

	if err := s.history.SaveAreaReading(ctx, r); err != nil {
		return domain.AreaReading{}, err
	}

	s.areas.mu.Lock()
	s.areas.readings = nil
	s.areas.mu.Unlock()
	return r, nil
}

// SimulatePolicies projects the effect of pollution-control policies on the
// current area readings.
func (s *Service) SimulatePolicies(ctx context.Context, req domain.SimulationRequest) (domain.SimulationResult, error) {
	return domain.SimulatePolicies(s.AreaReadings(ctx), req)
}
