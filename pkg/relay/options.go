package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/registry"
)

// Option configures a Relay.
type Option func(*Relay)

// WithDebounce sets how long the relay waits after the last payload before
// refreshing. Default is 250ms.
func WithDebounce(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// WithLimit sets the page size passed to Refresh. Zero keeps the feed default.
func WithLimit(n int) Option {
	return func(r *Relay) { r.limit = n }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithHandler registers fn to be called with every payload as it arrives,
// before the debounced refresh.
func WithHandler(fn func(context.Context, registry.PushPayload)) Option {
	return func(r *Relay) { r.handler = fn }
}
