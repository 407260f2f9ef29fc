package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores values in Redis under a common key prefix.
type Redis struct {
	db     redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Store = (*Redis)(nil)

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithPrefix namespaces every key. Default is "pushkit:".
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithTTL expires values after d. Zero keeps them forever.
func WithTTL(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d >= 0 {
			r.ttl = d
		}
	}
}

// NewRedis wraps an already connected client. The store does not own the
// client; closing it is the caller's job.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{db: client, prefix: "pushkit:"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	val, err := r.db.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreIO, err)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := r.db.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		return errors.Join(ErrStoreIO, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := r.db.Del(ctx, r.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreIO, err)
	}
	return nil
}
