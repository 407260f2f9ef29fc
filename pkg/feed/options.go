package feed

import (
	"log/slog"
	"time"
)

// Option configures a Feed.
type Option func(*Feed)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Feed) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithCallTimeout bounds every registry call. Default is 10 seconds.
func WithCallTimeout(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.callTimeout = d
		}
	}
}

// WithPageSize sets the limit used by Refresh when called with limit <= 0.
// Default is 50.
func WithPageSize(n int) Option {
	return func(f *Feed) {
		if n > 0 {
			f.pageSize = n
		}
	}
}
