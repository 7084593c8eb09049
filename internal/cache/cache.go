// Package cache holds the read-through cache in front of the public
// website sections and the category list.
package cache

import (
	"blogpress/internal/telemetry"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Cache stores opaque values by key. A miss is reported as ok == false, not
// as an error.
type Cache interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Nop never stores anything. It is used when no Redis URL is configured.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, ...string) error { return nil }

type Redis struct {
	rdb    *redis.Client
	prefix string
}

// Connect parses url, opens a client and verifies connectivity.
func Connect(ctx context.Context, url, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedis(rdb, prefix), nil
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, r.prefix+key, val, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = r.prefix + k
	}
	return r.rdb.Del(ctx, prefixed...).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Instrumented counts hits and misses of the wrapped cache.
type Instrumented struct {
	Cache
	metrics *telemetry.Metrics
}

func WithMetrics(c Cache, m *telemetry.Metrics) Cache {
	if m == nil {
		return c
	}
	return &Instrumented{Cache: c, metrics: m}
}

func (c *Instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, ok, err := c.Cache.Get(ctx, key)
	if err != nil {
		return val, ok, err
	}

	attrs := metric.WithAttributes(attribute.String("key", key))
	if ok {
		c.metrics.CacheHitsTotal.Add(ctx, 1, attrs)
	} else {
		c.metrics.CacheMissesTotal.Add(ctx, 1, attrs)
	}
	return val, ok, nil
}

// Fetch returns the JSON value cached under key, calling load and storing
// its result on a miss. Cache failures are logged and fall through to load;
// they never fail the read.
func Fetch[T any](ctx context.Context, c Cache, logger *slog.Logger, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil {
		logger.Warn("cache get failed", "key", key, "err", err)
	}

	if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		logger.Warn("dropping undecodable cache entry", "key", key)
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	raw, err = json.Marshal(v)
	if err != nil {
		logger.Warn("cache encode failed", "key", key, "err", err)
		return v, nil
	}
	if err := c.Set(ctx, key, raw, ttl); err != nil {
		logger.Warn("cache set failed", "key", key, "err", err)
	}

	return v, nil
}

// Invalidate deletes keys, logging instead of failing the caller's write.
func Invalidate(ctx context.Context, c Cache, logger *slog.Logger, keys ...string) {
	if err := c.Delete(ctx, keys...); err != nil {
		logger.Warn("cache invalidation failed", "keys", keys, "err", err)
	}
}
