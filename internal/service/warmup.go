package service

import (
	"context"
	"time"
)

const (
	warmupAttempts   = 3
	warmupBackoff    = 200 * time.Millisecond
	warmupMaxBackoff = 5 * time.Second
)

// Run loads or trains the model for every warm-up city, retrying each with
// exponential backoff, then marks the service ready. A city that still fails
// is trained lazily on its first forecast.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("model warm-up started", "cities", s.warmup)
	s.metrics.WarmupRunning.Set(1)
	defer s.metrics.WarmupRunning.Set(0)

	start := time.Now()
	for _, city := range s.warmup {
		if ctx.Err() != nil {
			s.logger.Info("model warm-up stopping", "reason", ctx.Err())
			return nil
		}
		s.warm(ctx, city)
	}
	if ctx.Err() != nil {
		return nil
	}

	s.ready.Store(true)
	s.logger.Info("model warm-up finished", "duration", time.Since(start))
	return nil
}

func (s *Service) warm(ctx context.Context, city string) {
	backoff := warmupBackoff
	for attempt := 1; attempt <= warmupAttempts; attempt++ {
		_, err := s.forecaster.Model(ctx, city)
		if err == nil {
			return
		}
		s.logger.Warn("model warm-up failed", "city", city, "attempt", attempt, "error", err)
		if attempt == warmupAttempts || !sleepWithContext(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, warmupMaxBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
