package push

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/kv"
)

// Option configures a Manager.
type Option func(*Manager)

// WithCallTimeout bounds every registry and platform channel call. Default is 10 seconds.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.callTimeout = d
		}
	}
}

// WithConfig applies cfg.
func WithConfig(cfg Config) Option {
	return WithCallTimeout(cfg.CallTimeout)
}

// WithStore persists the registered endpoint and pending cleanups.
func WithStore(s kv.Store) Option {
	return func(m *Manager) {
		if s != nil {
			m.store = s
		}
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}
