package preferences

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/kv"
)

// Option configures a Store.
type Option func(*Store)

// WithStore persists the last known snapshot and write sequence in s.
func WithStore(s kv.Store) Option {
	return func(st *Store) { st.kv = s }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(st *Store) {
		if l != nil {
			st.logger = l
		}
	}
}

// WithCallTimeout bounds every registry call. Default is 10 seconds.
func WithCallTimeout(d time.Duration) Option {
	return func(st *Store) {
		if d > 0 {
			st.callTimeout = d
		}
	}
}

// WithClock overrides the time source used for write sequence numbers.
func WithClock(now func() time.Time) Option {
	return func(st *Store) {
		if now != nil {
			st.now = now
		}
	}
}
