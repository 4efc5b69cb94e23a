package forecast

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/air-quality-service/internal/observability"
)

// TrainFunc produces a freshly trained model for a city key.
type TrainFunc func(ctx context.Context) (*Model, error)

// ModelCache holds trained models in memory in front of a ModelStore.
// Concurrent first-time requests for the same city share one load or
// training run.
type ModelCache struct {
	store   ModelStore
	metrics *observability.Metrics

	mu     sync.RWMutex
	models map[string]*Model
	group  singleflight.Group
}

// NewModelCache creates an empty cache backed by store.
func NewModelCache(store ModelStore, metrics *observability.Metrics) *ModelCache {
	return &ModelCache{
		store:   store,
		metrics: metrics,
		models:  make(map[string]*Model),
	}
}

// Get returns the in-memory model for a city key.
func (c *ModelCache) Get(cityKey string) (*Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[cityKey]
	return m, ok
}

// Put persists a model and makes it the cached model for its city.
func (c *ModelCache) Put(ctx context.Context, m *Model) error {
	if err := c.store.Save(ctx, m); err != nil {
		return err
	}
	c.mu.Lock()
	c.models[m.CityKey] = m
	c.mu.Unlock()
	return nil
}

// LoadOrTrain returns the cached model, else the stored one, else trains,
// saves, and caches a new model with train.
func (c *ModelCache) LoadOrTrain(ctx context.Context, cityKey string, train TrainFunc) (*Model, error) {
	if m, ok := c.Get(cityKey); ok {
		c.metrics.ModelCache.WithLabelValues("hit").Inc()
		return m, nil
	}

	v, err, _ := c.group.Do(cityKey, func() (any, error) {
		if m, ok := c.Get(cityKey); ok {
			return m, nil
		}

		m, err := c.store.Load(ctx, cityKey)
		if err == nil {
			c.mu.Lock()
			c.models[cityKey] = m
			c.mu.Unlock()
			c.metrics.ModelCache.WithLabelValues("loaded").Inc()
			return m, nil
		}
		if !errors.Is(err, ErrModelNotFound) {
			return nil, err
		}

		m, err = train(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Put(ctx, m); err != nil {
			return nil, err
		}
		c.metrics.ModelCache.WithLabelValues("trained").Inc()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

// Len returns the number of cached models.
func (c *ModelCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}
