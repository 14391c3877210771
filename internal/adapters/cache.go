package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/trace"
)

// Cache wraps a Redis client with a span per command.
type Cache struct {
	rdb    *redis.Client
	rec    *trace.Recorder
	logger *zap.Logger
}

// NewCache creates a traced cache client for the given address.
func NewCache(addr string, rec *trace.Recorder, logger *zap.Logger) *Cache {
	return &Cache{
		rdb:    redis.NewClient(&redis.Options{Addr: addr}),
		rec:    rec,
		logger: logger,
	}
}

// Get fetches a key. A miss is a successful lookup with cache.hit=false,
// reported as (value "", ok false, err nil).
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	parent, _ := trace.FromContext(ctx)
	span, sc := c.rec.Start("cache.get", parent)
	span.SetAttribute("cache.key", key)

	val, err := c.rdb.Get(trace.ContextWith(ctx, sc), key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		endSpan(c.rec, span, trace.StatusOK, map[string]any{"cache.hit": false}, c.logger)
		return "", false, nil
	case err != nil:
		c.rec.RecordError(span, err)
		endSpan(c.rec, span, trace.StatusError, nil, c.logger)
		return "", false, err
	}

	endSpan(c.rec, span, trace.StatusOK, map[string]any{"cache.hit": true}, c.logger)
	return val, true, nil
}

// Set stores a key with a TTL; zero means no expiry.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	parent, _ := trace.FromContext(ctx)
	span, sc := c.rec.Start("cache.set", parent)
	span.SetAttribute("cache.key", key)

	err := c.rdb.Set(trace.ContextWith(ctx, sc), key, value, ttl).Err()
	if err != nil {
		c.rec.RecordError(span, err)
		endSpan(c.rec, span, trace.StatusError, nil, c.logger)
		return err
	}

	endSpan(c.rec, span, trace.StatusOK, nil, c.logger)
	return nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
