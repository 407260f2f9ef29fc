package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pushkit/pkg/redis"
)

func TestConnect_EmptyURL(t *testing.T) {
	_, err := redis.Connect(context.Background(), redis.Config{})
	assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := redis.Connect(context.Background(), redis.Config{ConnectionURL: "http://not-redis"})
	assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
}

func TestConnect_NotReady(t *testing.T) {
	cfg := redis.Config{
		ConnectionURL:  "redis://127.0.0.1:1/0",
		RetryAttempts:  2,
		RetryInterval:  10 * time.Millisecond,
		ConnectTimeout: time.Second,
	}
	_, err := redis.Connect(context.Background(), cfg)
	assert.ErrorIs(t, err, redis.ErrRedisNotReady)
}

func TestConnect_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := redis.Config{ConnectionURL: "redis://127.0.0.1:1/0", RetryAttempts: 3, RetryInterval: time.Hour}
	_, err := redis.Connect(ctx, cfg)
	assert.ErrorIs(t, err, redis.ErrRedisNotReady)
}

func TestConfig_Validate(t *testing.T) {
	cfg := redis.Config{RetryAttempts: 1, ConnectTimeout: time.Second}
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Enabled())

	cfg.RetryAttempts = 0
	assert.Error(t, cfg.Validate())
}

func TestConnect_Live(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	client, err := redis.Connect(context.Background(), redis.Config{ConnectionURL: url, RetryAttempts: 1, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, redis.Healthcheck(client)(context.Background()))
}

func TestHealthcheck_Unreachable(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorIs(t, redis.Healthcheck(client)(ctx), redis.ErrHealthcheckFailed)
}
