package currency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "finwrap:rate:v1:"

// latestTTL bounds how long a "latest" quote is shared between runs. Dated
// quotes never change and are kept forever.
const latestTTL = 24 * time.Hour

// RedisCache shares memoized rates between runs through Redis.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// DialRedis connects to the Redis server at url, e.g.
// "redis://localhost:6379/0".
func DialRedis(ctx context.Context, url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func redisKey(k Key) string { return redisPrefix + k.String() }

func (c *RedisCache) Get(ctx context.Context, k Key) (float64, bool, error) {
	rate, err := c.client.Get(ctx, redisKey(k)).Float64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("cache get: %w", err)
	}
	return rate, true, nil
}

func (c *RedisCache) Set(ctx context.Context, k Key, rate float64) error {
	var ttl time.Duration
	if k.Date == Latest {
		ttl = latestTTL
	}
	if err := c.client.Set(ctx, redisKey(k), rate, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
