package ratelimiter

import (
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/logger"
)

// maxKeyLength bounds composite keys; longer ones are hashed.
const maxKeyLength = 64

// KeyFunc extracts a rate limit key from the request. An empty key skips
// limiting for that request.
type KeyFunc func(r *http.Request) string

// Composite joins the non-empty keys of several functions with ":". Results
// longer than 64 bytes are replaced by their FNV-1a hash in base 36.
func Composite(keyFuncs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(keyFuncs))
		for _, fn := range keyFuncs {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}
		combined := strings.Join(parts, ":")
		if len(combined) <= maxKeyLength {
			return combined
		}
		h := fnv.New64a()
		_, _ = h.Write([]byte(combined))
		return strconv.FormatUint(h.Sum64(), 36)
	}
}

type middlewareOptions struct {
	log       *slog.Logger
	failOpen  bool
	now       func() time.Time
	keyPrefix string
}

type MiddlewareOption func(*middlewareOptions)

func WithMiddlewareLogger(l *slog.Logger) MiddlewareOption {
	return func(o *middlewareOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// WithFailOpen lets requests through when the store is unavailable instead
// of answering 503.
func WithFailOpen() MiddlewareOption {
	return func(o *middlewareOptions) { o.failOpen = true }
}

// WithScope prefixes every key, so one store can back several limits.
func WithScope(scope string) MiddlewareOption {
	return func(o *middlewareOptions) { o.keyPrefix = scope + ":" }
}

// Middleware limits requests per key.
func Middleware(limiter Limiter, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	o := middlewareOptions{log: logger.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.With(logger.Component("ratelimiter"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			res, err := limiter.Allow(ctx, o.keyPrefix+key)
			if err != nil {
				log.LogAttrs(ctx, slog.LevelError, "rate limit check failed",
					slog.String("key", key),
					logger.Error(err),
				)
				if o.failOpen {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed() {
				retry := int(math.Ceil(res.RetryAfter(o.now()).Seconds()))
				h.Set("Retry-After", strconv.Itoa(max(retry, 1)))
				log.LogAttrs(ctx, slog.LevelWarn, "rate limit exceeded",
					slog.String("key", key),
					slog.String("path", r.URL.Path),
				)
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
