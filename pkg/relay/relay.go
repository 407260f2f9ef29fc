package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/broadcast"
	"github.com/dmitrymomot/pushkit/pkg/logger"
	"github.com/dmitrymomot/pushkit/pkg/registry"
)

// Refresher reloads a notification cache. *feed.Feed implements it.
type Refresher interface {
	Refresh(ctx context.Context, limit int) error
}

// Relay refreshes a feed when push payloads arrive.
type Relay struct {
	source   broadcast.Broadcaster[registry.PushPayload]
	feed     Refresher
	debounce time.Duration
	limit    int
	logger   *slog.Logger
	handler  func(context.Context, registry.PushPayload)
}

func New(source broadcast.Broadcaster[registry.PushPayload], feed Refresher, opts ...Option) *Relay {
	r := &Relay{
		source:   source,
		feed:     feed,
		debounce: 250 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run consumes payloads until ctx is done or the subscription ends, which
// happens when the source is closed or drops the relay as a slow consumer.
// A refresh still due when the subscription ends is performed before
// returning. Returns ctx.Err() on cancellation and nil otherwise.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.source.Subscribe(ctx)
	defer sub.Close()

	var (
		timer *time.Timer
		due   <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	messages := sub.Receive(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-messages:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				if due != nil {
					r.refresh(ctx)
				}
				return nil
			}
			r.logger.LogAttrs(ctx, slog.LevelDebug, "push payload received",
				logger.Component("relay"),
				logger.NotificationID(msg.Data.ID),
				slog.String("kind", string(msg.Data.Kind)),
			)
			if r.handler != nil {
				r.handler(ctx, msg.Data)
			}
			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				timer.Reset(r.debounce)
			}
			due = timer.C

		case <-due:
			due = nil
			r.refresh(ctx)
		}
	}
}

func (r *Relay) refresh(ctx context.Context) {
	if err := r.feed.Refresh(ctx, r.limit); err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "feed refresh after push failed",
			logger.Component("relay"),
			logger.Error(err),
		)
	}
}

// Loopback is a registry.Pusher that broadcasts payloads in-process instead
// of sending them to a push service.
type Loopback struct {
	Target broadcast.Broadcaster[registry.PushPayload]
}

var _ registry.Pusher = Loopback{}

func (l Loopback) Push(ctx context.Context, _ registry.Device, payload []byte) error {
	var p registry.PushPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.Join(ErrInvalidPayload, err)
	}
	return l.Target.Broadcast(ctx, broadcast.Message[registry.PushPayload]{Data: p})
}
