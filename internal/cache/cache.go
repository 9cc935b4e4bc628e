package cache

import (
	"context"
	"time"

	"api-gateway/internal/circuitbreaker"
	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
	"api-gateway/internal/health"
)

// Cache is the fail-open front of a Backend.
type Cache struct {
	backend  Backend
	breaker  *circuitbreaker.Breaker
	recorder health.Recorder
	logger   logging.Logger
	now      func() time.Time
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithRecorder(r health.Recorder) Option {
	return func(c *Cache) { c.recorder = r }
}

func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Cache) { c.breaker = b }
}

func WithLogger(logger logging.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend:  backend,
		recorder: health.NopRecorder{},
		logger:   logging.Component("cache"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = circuitbreaker.New("cache:"+backend.Name(), circuitbreaker.CacheConfig, c.logger)
	}
	return c
}

// Get returns a fresh entry. Backend failures and stale entries are misses.
func (c *Cache) Get(ctx context.Context, key string) (*Entry, bool) {
	var (
		entry *Entry
		found bool
	)
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		entry, found, err = c.backend.Get(ctx, key)
		return err
	})
	if err != nil {
		c.fail(ctx, "get", err)
		c.recorder.Incr(health.ComponentCache, health.MetricMiss)
		return nil, false
	}

	if !found || !entry.Fresh(c.now()) {
		c.recorder.Incr(health.ComponentCache, health.MetricMiss)
		return nil, false
	}
	c.recorder.Incr(health.ComponentCache, health.MetricHit)
	return entry, true
}

// Put stores entry, stamping StoredAt. Failures are logged and dropped.
func (c *Cache) Put(ctx context.Context, key string, entry *Entry) {
	if entry.TTL <= 0 {
		return
	}
	entry.StoredAt = c.now()

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.backend.Put(ctx, key, entry)
	})
	if err != nil {
		c.fail(ctx, "put", err)
	}
}

// Invalidate removes every entry tagged tag. Unlike reads, a failure is
// returned: callers asked for the removal explicitly.
func (c *Cache) Invalidate(ctx context.Context, tag string) (int, error) {
	var removed int
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		removed, err = c.backend.Invalidate(ctx, tag)
		return err
	})
	if err != nil {
		c.fail(ctx, "invalidate", err)
		return 0, errors.CacheError("failed to invalidate tag "+tag, err)
	}

	c.logger.WithContext(ctx).Debug("Cache tag invalidated",
		logging.Field{Key: "tag", Value: tag},
		logging.Field{Key: "removed", Value: removed},
	)
	return removed, nil
}

// InvalidateQuietly is Invalidate for mutating handlers, which must not
// fail because the cache is down.
func (c *Cache) InvalidateQuietly(ctx context.Context, tags ...string) {
	for _, tag := range tags {
		_, _ = c.Invalidate(ctx, tag)
	}
}

func (c *Cache) BreakerStats() circuitbreaker.Stats {
	return c.breaker.Stats()
}

func (c *Cache) fail(ctx context.Context, op string, err error) {
	c.recorder.Incr(health.ComponentCache, health.MetricError)
	c.logger.WithContext(ctx).Warn("Cache backend unavailable, continuing without cache",
		logging.Field{Key: "op", Value: op},
		logging.Field{Key: "backend", Value: c.backend.Name()},
		logging.Err(err),
	)
}
