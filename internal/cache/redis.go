package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/miroirapp/miroir/internal/config"
	"github.com/redis/go-redis/v9"
)

// counterTTL bounds how long cached per-user counters live without access.
const counterTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.Client.Incr(ctx, key).Result()
}

func (c *RedisCache) Decr(ctx context.Context, key string) (int64, error) {
	return c.Client.Decr(ctx, key).Result()
}

// KeyForAdmirerCount generates the Redis key for a user's pending-like count.
func (c *RedisCache) KeyForAdmirerCount(userID uint64) string {
	return fmt.Sprintf("admirers:count:%d", userID)
}

// KeyForUnread generates the Redis key for a user's undelivered-message count.
func (c *RedisCache) KeyForUnread(userID uint64) string {
	return fmt.Sprintf("chat:unread:%d", userID)
}

// SetCounter stores a counter value with the standard TTL.
func (c *RedisCache) SetCounter(ctx context.Context, key string, count int64) error {
	return c.Client.Set(ctx, key, count, counterTTL).Err()
}

// GetCounter reads a counter; a cache miss yields (0, false, nil).
// Refreshes the TTL on access.
func (c *RedisCache) GetCounter(ctx context.Context, key string) (int64, bool, error) {
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	_ = c.Client.Expire(ctx, key, counterTTL).Err()
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil // treat garbage as a miss
	}
	return n, true, nil
}

// BumpCounter adjusts an existing counter and refreshes its TTL. A key
// that is not cached yet is left alone so the next read repopulates it
// from the database instead of starting from a partial count.
func (c *RedisCache) BumpCounter(ctx context.Context, key string, delta int64) {
	n, err := c.Client.Exists(ctx, key).Result()
	if err != nil || n == 0 {
		return
	}
	if delta >= 0 {
		_, _ = c.Client.IncrBy(ctx, key, delta).Result()
	} else {
		_, _ = c.Client.DecrBy(ctx, key, -delta).Result()
	}
	_ = c.Client.Expire(ctx, key, counterTTL).Err()
}
