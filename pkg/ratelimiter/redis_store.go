package ratelimiter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and consumes atomically. Bucket state is a hash
// with fields t (tokens) and r (last refill, unix ms).
//
// KEYS[1] bucket key
// ARGV    capacity, refill rate, interval ms, tokens, now ms
// returns {remaining or -1, last refill ms}
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate     = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local want     = tonumber(ARGV[4])
local now      = tonumber(ARGV[5])

local state  = redis.call('HMGET', KEYS[1], 't', 'r')
local tokens = tonumber(state[1])
local refill = tonumber(state[2])
if tokens == nil or refill == nil then
	tokens = capacity
	refill = now
end

local intervals = math.floor((now - refill) / interval)
if intervals > 0 then
	tokens = math.min(capacity, tokens + intervals * rate)
	refill = now
end

local remaining = -1
if tokens >= want then
	tokens = tokens - want
	remaining = tokens
end

redis.call('HSET', KEYS[1], 't', tokens, 'r', refill)
local full = math.ceil(capacity / rate) * interval
redis.call('PEXPIRE', KEYS[1], full + interval)
return {remaining, refill}
`)

// RedisStore keeps buckets in Redis so several processes share one limit.
type RedisStore struct {
	db     redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

type RedisStoreOption func(*RedisStore)

// WithKeyPrefix namespaces bucket keys. Default is "ratelimit:".
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithRedisClock overrides time.Now. Redis-side time is not used so that
// every caller shares the clock it reports ResetAt in.
func WithRedisClock(now func() time.Time) RedisStoreOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedisStore wraps a connected client. The store does not own it.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{db: client, prefix: "ratelimit:", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config) (int, time.Time, error) {
	interval := cfg.RefillInterval.Milliseconds()
	res, err := tokenBucketScript.Run(ctx, s.db, []string{s.prefix + key},
		cfg.Capacity, cfg.RefillRate, interval, tokens, s.now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, errors.Join(ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, errors.Join(ErrStoreUnavailable, errors.New("unexpected script reply"))
	}
	return int(res[0]), time.UnixMilli(res[1] + interval), nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.db.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
