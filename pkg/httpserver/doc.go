// Package httpserver runs an http.Handler with graceful shutdown.
//
// Run listens, serves and blocks until the context is cancelled or the process
// receives SIGINT or SIGTERM, then drains in-flight requests within the
// shutdown timeout. Listening happens before Run returns control to the
// serving goroutine, so Addr is valid as soon as Ready is closed, which makes
// ":0" usable in tests.
//
//	r := chi.NewRouter()
//	r.Get("/healthz", httpserver.HealthHandler(log, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)}))
//	r.Mount("/", registry.NewServer(backend).Handler())
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, r); err != nil {
//	    log.Error("registryd stopped", logger.Error(err))
//	}
//
// Run wraps listen errors with ErrStart and Shutdown wraps drain errors with
// ErrShutdown.
package httpserver
