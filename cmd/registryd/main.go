// Command registryd serves the delivery registry REST API for a single user
// and sends real Web Push messages for test notifications. Devices,
// preferences and notifications are saved after every change to a JSON file,
// or to Redis when REDIS_URL is set, and loaded again on start.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/pushkit/pkg/broadcast"
	"github.com/dmitrymomot/pushkit/pkg/clientip"
	"github.com/dmitrymomot/pushkit/pkg/config"
	"github.com/dmitrymomot/pushkit/pkg/feed"
	"github.com/dmitrymomot/pushkit/pkg/httpserver"
	"github.com/dmitrymomot/pushkit/pkg/kv"
	"github.com/dmitrymomot/pushkit/pkg/logger"
	"github.com/dmitrymomot/pushkit/pkg/ratelimiter"
	"github.com/dmitrymomot/pushkit/pkg/redis"
	"github.com/dmitrymomot/pushkit/pkg/registry"
	"github.com/dmitrymomot/pushkit/pkg/relay"
	"github.com/dmitrymomot/pushkit/pkg/requestid"
)

const (
	keyVAPID = "registryd/vapid"
	keyState = "registryd/state"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "registryd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		app     appConfig
		keys    vapidConfig
		limits  limitConfig
		httpCfg httpserver.Config
		redCfg  redis.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&app) },
		func() error { return config.Load(&keys) },
		func() error { return config.Load(&limits) },
		func() error { return config.Load(&httpCfg) },
		func() error { return config.Load(&redCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	log := logger.New(
		logger.WithEnvironment(app.Env, "registryd"),
		logger.WithContextExtractors(requestid.LoggerExtractor(), clientip.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store      kv.Store = kv.NewFile(filepath.Join(app.StateDir, "registryd.json"))
		limitStore ratelimiter.Store
		checks     []httpserver.Check
	)
	if redCfg.Enabled() {
		client, err := redis.Connect(ctx, redCfg)
		if err != nil {
			return err
		}
		defer client.Close()
		store = kv.NewRedis(client, kv.WithPrefix(redCfg.KeyPrefix))
		limitStore = ratelimiter.NewRedisStore(client, ratelimiter.WithKeyPrefix(redCfg.KeyPrefix+"ratelimit:"))
		checks = append(checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
	} else {
		mem := ratelimiter.NewMemoryStore()
		defer mem.Close()
		limitStore = mem
	}

	testLimiter, err := newTestLimiter(log, limitStore, limits)
	if err != nil {
		return err
	}

	if err := ensureKeys(ctx, log, store, &keys); err != nil {
		return err
	}

	var pusher registry.Pusher = registry.WebPusher{
		Subscriber: keys.Subscriber,
		PublicKey:  keys.PublicKey,
		PrivateKey: keys.PrivateKey,
		TTL:        keys.TTL,
	}

	var loopback *broadcast.MemoryBroadcaster[registry.PushPayload]
	if app.Loopback {
		loopback = broadcast.NewMemoryBroadcaster[registry.PushPayload](
			broadcast.WithBufferSize(64),
			broadcast.WithLogger(log),
		)
		defer loopback.Close()
		pusher = relay.Loopback{Target: loopback}
	}

	backend, err := newBackend(ctx, store, keys.PublicKey, pusher)
	if err != nil {
		return err
	}

	if loopback != nil {
		go watchLoopback(ctx, log, loopback, backend)
	}

	r := chi.NewRouter()
	r.Use(clientip.Middleware(app.TrustedProxyHeaders...))
	r.Get("/healthz", httpserver.HealthHandler(log))
	r.Get("/readyz", httpserver.HealthHandler(log, checks...))
	r.Mount("/", registry.NewServer(backend,
		registry.WithServerToken(app.Token),
		registry.WithServerLogger(log),
		registry.WithTestLimiter(testLimiter),
	).Handler())

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	return srv.Run(ctx, r)
}

// newBackend restores the registry state saved in store. Every later change
// is written back to it.
func newBackend(ctx context.Context, store kv.Store, publicKey string, pusher registry.Pusher) (*registry.Memory, error) {
	backend := registry.NewMemory(
		registry.WithPublicKey(publicKey),
		registry.WithPusher(pusher),
		registry.WithStore(store, keyState),
	)
	if err := backend.Load(ctx); err != nil {
		return nil, err
	}
	return backend, nil
}

// newTestLimiter allows a burst of test pushes per client IP, then one per
// interval.
func newTestLimiter(log *slog.Logger, store ratelimiter.Store, cfg limitConfig) (func(http.Handler) http.Handler, error) {
	bucket, err := ratelimiter.NewBucket(store, ratelimiter.Config{
		Capacity:       cfg.Burst,
		RefillRate:     1,
		RefillInterval: cfg.Interval,
	})
	if err != nil {
		return nil, err
	}
	opts := []ratelimiter.MiddlewareOption{
		ratelimiter.WithMiddlewareLogger(log),
		ratelimiter.WithScope("test-push"),
	}
	if cfg.FailOpen {
		opts = append(opts, ratelimiter.WithFailOpen())
	}
	return ratelimiter.Middleware(bucket, clientip.KeyFunc, opts...), nil
}

// ensureKeys loads the VAPID pair from the environment, then from store, and
// generates and stores a new pair when neither has one.
func ensureKeys(ctx context.Context, log *slog.Logger, store kv.Store, keys *vapidConfig) error {
	if keys.PublicKey != "" {
		return nil
	}

	var saved struct {
		Public  string `json:"public"`
		Private string `json:"private"`
	}
	err := kv.GetJSON(ctx, store, keyVAPID, &saved)
	switch {
	case err == nil:
		keys.PublicKey, keys.PrivateKey = saved.Public, saved.Private
		return keys.Validate()
	case !errors.Is(err, kv.ErrNotFound):
		return fmt.Errorf("load vapid keys: %w", err)
	}

	private, public, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return fmt.Errorf("generate vapid keys: %w", err)
	}
	saved.Public, saved.Private = public, private
	if err := kv.SetJSON(ctx, store, keyVAPID, saved); err != nil {
		return fmt.Errorf("store vapid keys: %w", err)
	}
	keys.PublicKey, keys.PrivateKey = public, private

	log.LogAttrs(ctx, slog.LevelWarn, "generated vapid key pair",
		logger.Component("registryd"),
		slog.String("public_key", public),
	)
	return nil
}

// watchLoopback logs loopback pushes and keeps a server-side view of the
// feed fresh, the same way a client relay does.
func watchLoopback(ctx context.Context, log *slog.Logger, source broadcast.Broadcaster[registry.PushPayload], backend registry.Registry) {
	notifications := feed.New(backend, feed.WithLogger(log))
	defer notifications.Close()

	r := relay.New(source, notifications,
		relay.WithLogger(log),
		relay.WithHandler(func(ctx context.Context, p registry.PushPayload) {
			log.LogAttrs(ctx, slog.LevelInfo, "loopback push delivered",
				logger.Component("registryd"),
				logger.NotificationID(p.ID),
				slog.String("title", p.Title),
				slog.Int("unread", notifications.UnreadCount()),
			)
		}),
	)
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.LogAttrs(ctx, slog.LevelError, "loopback relay stopped",
			logger.Component("registryd"),
			logger.Error(err),
		)
	}
}
