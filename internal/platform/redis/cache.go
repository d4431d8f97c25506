// Package redis implements the cache port on top of go-redis and tracks the
// health of the Redis server that the cache and the export queue share.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/taskboard-api/internal/cache"
	"github.com/phrazzld/taskboard-api/internal/config"
)

// scanBatch is the COUNT hint passed to SCAN while expanding patterns.
const scanBatch = 100

// Cache is a health-checked Redis cache. Its availability flag is updated by
// explicit pings and by command failures, and it doubles as the availability
// signal the export dispatcher consults before enqueueing.
type Cache struct {
	client   goredis.UniversalClient
	logger   *slog.Logger
	interval time.Duration

	available atomic.Bool
}

// Compile-time check that Cache implements cache.Cache.
var _ cache.Cache = (*Cache)(nil)

// NewClient builds a go-redis client from cfg. Dial, read and write timeouts
// are kept short so an unreachable server degrades requests quickly instead
// of stalling them.
func NewClient(cfg config.RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout(),
		ReadTimeout:  cfg.DialTimeout(),
		WriteTimeout: cfg.DialTimeout(),
		MaxRetries:   1,
	})
}

// New creates a Cache over client. It reports unavailable until the first
// successful Ping.
func New(client goredis.UniversalClient, interval time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Cache{
		client:   client,
		logger:   logger.With("component", "redis_cache"),
		interval: interval,
	}
}

// Start pings once synchronously, then keeps pinging every interval until
// ctx is cancelled.
func (c *Cache) Start(ctx context.Context) {
	c.Ping(ctx)
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Ping(ctx)
			}
		}
	}()
}

// Ping checks the server and records the result. It returns the new state.
func (c *Cache) Ping(ctx context.Context) bool {
	err := c.client.Ping(ctx).Err()
	c.setAvailable(err == nil, err)
	return err == nil
}

// Available implements cache.Cache.
func (c *Cache) Available() bool {
	return c.available.Load()
}

// Get implements cache.Cache.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, cache.Result, error) {
	if !c.Available() {
		return nil, cache.Unavailable, cache.ErrUnavailable
	}

	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, cache.Miss, nil
	case err != nil:
		c.observe(err)
		return nil, cache.Unavailable, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return val, cache.Hit, nil
}

// Set implements cache.Cache.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !c.Available() {
		return cache.ErrUnavailable
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.observe(err)
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

// Delete implements cache.Cache. Unlike reads and writes it is sent even
// while the server is marked down: a recovered server may still hold the
// entry being invalidated, and the client timeouts bound the attempt.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.observe(err)
		return fmt.Errorf("redis DEL: %w", err)
	}
	c.setAvailable(true, nil)
	return nil
}

// Keys implements cache.Cache using SCAN so large keyspaces are walked
// incrementally. Like Delete it ignores the availability flag.
func (c *Cache) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.observe(err)
		return nil, fmt.Errorf("redis SCAN %s: %w", pattern, err)
	}
	c.setAvailable(true, nil)
	return keys, nil
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// observe marks the server down on connection-level failures. Context
// cancellation belongs to the caller and says nothing about server health.
func (c *Cache) observe(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	c.setAvailable(false, err)
}

func (c *Cache) setAvailable(up bool, cause error) {
	prev := c.available.Swap(up)
	if prev == up {
		return
	}
	if up {
		c.logger.Info("redis connection established")
		return
	}
	attrs := []any{}
	if cause != nil {
		attrs = append(attrs, slog.String("error", cause.Error()))
	}
	c.logger.Warn("redis unavailable, falling back to direct store access", attrs...)
}
