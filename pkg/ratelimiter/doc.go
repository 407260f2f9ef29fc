// Package ratelimiter throttles requests with a token bucket.
//
// A Bucket holds Capacity tokens and regains RefillRate tokens every
// RefillInterval. Bucket state lives in a Store: MemoryStore for a single
// process, RedisStore when several registryd instances share limits.
//
//	limiter, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), ratelimiter.Config{
//		Capacity:       5,
//		RefillRate:     1,
//		RefillInterval: time.Minute,
//	})
//	r.With(ratelimiter.Middleware(limiter, byClientIP)).Post("/notifications/test", api.ServeHTTP)
//
// Middleware answers 429 with Retry-After once a key runs dry and reports
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset on every
// response.
package ratelimiter
