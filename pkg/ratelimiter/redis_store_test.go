package ratelimiter_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pushkit/pkg/ratelimiter"
)

func TestRedisStore_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer client.Close()

	b, err := ratelimiter.NewBucket(ratelimiter.NewRedisStore(client), ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Second})
	require.NoError(t, err)

	_, err = b.Allow(context.Background(), "k")
	assert.ErrorIs(t, err, ratelimiter.ErrStoreUnavailable)
	assert.ErrorIs(t, b.Reset(context.Background(), "k"), ratelimiter.ErrStoreUnavailable)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	c := newClock()
	store := ratelimiter.NewRedisStore(client,
		ratelimiter.WithKeyPrefix("pushkit-test:"+t.Name()+":"),
		ratelimiter.WithRedisClock(c.Now),
	)
	b, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Minute})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Reset(ctx, "k"))
	t.Cleanup(func() { _ = b.Reset(context.Background(), "k") })

	res, err := b.Allow(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, c.Now().Add(time.Minute).UnixMilli(), res.ResetAt.UnixMilli())

	_, err = b.Allow(ctx, "k")
	require.NoError(t, err)
	res, err = b.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed())

	c.Advance(time.Minute)
	res, err = b.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, 0, res.Remaining)
}
