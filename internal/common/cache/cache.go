// Package cache is a namespaced, expiring JSON cache over an in-process or
// Redis store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"match-workers/internal/common/config"
	"match-workers/internal/common/logger"
	"match-workers/internal/common/metrics"
)

// Stats describes the live entries.
type Stats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

type Cache struct {
	store  Store
	ttls   TTLs
	logger logger.Logger
}

func New(store Store, ttls TTLs, log logger.Logger) *Cache {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if ttls.Default <= 0 {
		ttls.Default = DefaultTTLs().Default
	}
	return &Cache{store: store, ttls: ttls, logger: log.WithFields(map[string]interface{}{"cache": store.Name()})}
}

// NewFromConfig selects the backend named by cfg.Backend. redisClient is
// required for the redis backend.
func NewFromConfig(cfg config.CacheConfig, redisClient redis.UniversalClient, log logger.Logger) (*Cache, error) {
	ttls := TTLsFromConfig(cfg.TTL)
	switch cfg.Backend {
	case "", "memory":
		return New(NewMemoryStore(), ttls, log), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("cache backend redis requires a redis client")
		}
		return New(NewRedisStore(redisClient, cfg.Namespace), ttls, log), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func (c *Cache) TTLs() TTLs { return c.ttls }

func (c *Cache) Backend() string { return c.store.Name() }

// Set stores value as JSON. ttl <= 0 uses the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttls.Default
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %s: %w", key, err)
	}
	if err := c.store.Set(ctx, key, b, ttl); err != nil {
		c.record("error")
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Get decodes the entry into dest. A missing or expired key returns false.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	b, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.record("error")
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if !ok {
		c.record("miss")
		return false, nil
	}
	if err := json.Unmarshal(b, dest); err != nil {
		c.record("error")
		return false, fmt.Errorf("decode cache value %s: %w", key, err)
	}
	c.record("hit")
	return true, nil
}

func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return ok, nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("cache keys: %w", err)
	}
	return Stats{Size: len(keys), Keys: keys}, nil
}

// InvalidateUserCache drops the profile, matches and network graph entries
// for userID.
func (c *Cache) InvalidateUserCache(ctx context.Context, userID string) error {
	return c.Delete(ctx, userKeys(userID)...)
}

// GetOrSet returns the cached value for key, or calls fetch and caches its
// result. A failing store degrades to calling fetch; the failure is logged.
// Errors from fetch are returned and nothing is cached.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var cached T
	ok, err := c.Get(ctx, key, &cached)
	if err != nil {
		c.logger.Warn("cache read failed, fetching", map[string]interface{}{"key": key, "error": err.Error()})
	}
	if ok {
		return cached, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return value, nil
}

func (c *Cache) record(result string) {
	metrics.CacheRequests.WithLabelValues(c.store.Name(), result).Inc()
}
