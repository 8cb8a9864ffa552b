package currency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	c, err := DialRedis(context.Background(), "redis://"+srv.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, srv
}

func TestRedisCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c, srv := newRedisCache(t)
	k := NewKey("USD", "eur", On(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), ptr(1))

	_, ok, err := c.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, k, 0.91))
	rate, ok, err := c.Get(ctx, k)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.91, rate)

	assert.True(t, srv.Exists("finwrap:rate:v1:usd:eur:2024-01-01:1"))
	assert.Zero(t, srv.TTL(redisKey(k)), "dated rates never expire")
}

func TestRedisCache_LatestExpires(t *testing.T) {
	ctx := context.Background()
	c, srv := newRedisCache(t)
	k := NewKey("usd", "eur", Latest, nil)

	require.NoError(t, c.Set(ctx, k, 0.9))
	assert.Equal(t, 24*time.Hour, srv.TTL(redisKey(k)))

	srv.FastForward(25 * time.Hour)
	_, ok, err := c.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_GetError(t *testing.T) {
	ctx := context.Background()
	c, srv := newRedisCache(t)
	k := NewKey("usd", "eur", Latest, nil)
	require.NoError(t, srv.Set(redisKey(k), "not-a-number"))

	_, _, err := c.Get(ctx, k)
	assert.ErrorContains(t, err, "cache get")
}

func TestDialRedis_Errors(t *testing.T) {
	_, err := DialRedis(context.Background(), "http://localhost")
	assert.ErrorContains(t, err, "parsing redis url")

	_, err = DialRedis(context.Background(), "redis://127.0.0.1:1")
	assert.ErrorContains(t, err, "connecting to redis")
}

func TestResolver_SharesRedisCache(t *testing.T) {
	ctx := context.Background()
	rs := newRateServer(t, map[string]map[string]float64{
		"latest/usd": {"eur": 0.9},
	})
	srv := miniredis.RunT(t)
	client := func() *RedisCache {
		c := NewRedisCache(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
		t.Cleanup(func() { _ = c.Close() })
		return c
	}

	// Two resolvers, as in two separate runs, share one Redis.
	first := rs.resolver(WithCache(client()))
	rate, err := first.Rate(ctx, "usd", "eur", Latest, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.9, rate)

	second := rs.resolver(WithCache(client()))
	rate, err = second.Rate(ctx, "usd", "eur", Latest, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.9, rate)
	assert.Equal(t, int64(1), rs.hits.Load())
}
