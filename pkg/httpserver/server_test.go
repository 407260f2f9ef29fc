package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pushkit/pkg/httpserver"
	"github.com/dmitrymomot/pushkit/pkg/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func start(t *testing.T, srv *httpserver.Server, ctx context.Context, h http.Handler) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, h) }()
	select {
	case <-srv.Ready():
	case err := <-done:
		t.Fatalf("server did not start: %v", err)
	case <-time.After(time.Second):
		t.Fatal("server did not start")
	}
	return done
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
		return nil
	}
}

func newServer(opts ...httpserver.Option) *httpserver.Server {
	return httpserver.New(append([]httpserver.Option{
		httpserver.WithAddr("127.0.0.1:0"),
		httpserver.WithShutdownTimeout(100 * time.Millisecond),
		httpserver.WithLogger(logger.Discard()),
	}, opts...)...)
}

func TestRunAndCancel(t *testing.T) {
	srv := newServer()
	assert.Nil(t, srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := start(t, srv, ctx, okHandler())

	require.NotNil(t, srv.Addr())
	resp, err := http.Get("http://" + srv.Addr().String())
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, wait(t, done))
	require.NoError(t, srv.Shutdown(context.Background()), "shutdown after run is a no-op")
}

func TestNilHandlerServesNotFound(t *testing.T) {
	srv := newServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := start(t, srv, ctx, nil)

	resp, err := http.Get("http://" + srv.Addr().String() + "/anything")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	require.NoError(t, wait(t, done))
}

func TestManualShutdownRunsStopHooks(t *testing.T) {
	var stopped atomic.Int32
	srv := newServer(
		httpserver.WithStopHook(func() { stopped.Add(1) }),
		httpserver.WithStopHook(nil),
	)
	done := start(t, srv, context.Background(), okHandler())

	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, wait(t, done))
	assert.Equal(t, int32(1), stopped.Load())
}

func TestShutdownBeforeRun(t *testing.T) {
	srv := newServer()
	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestStartError(t *testing.T) {
	srv := httpserver.New(httpserver.WithAddr(":invalid"))
	err := srv.Run(context.Background(), okHandler())
	require.Error(t, err)
	assert.ErrorIs(t, err, httpserver.ErrStart)
}

func TestAlreadyRunning(t *testing.T) {
	srv := newServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := start(t, srv, ctx, okHandler())

	err := srv.Run(context.Background(), okHandler())
	assert.ErrorIs(t, err, httpserver.ErrStart)

	cancel()
	require.NoError(t, wait(t, done))
}

func TestShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	srv := newServer(httpserver.WithShutdownTimeout(20 * time.Millisecond))
	done := start(t, srv, context.Background(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	}))
	defer close(release)

	go func() {
		resp, err := http.Get("http://" + srv.Addr().String())
		if err == nil {
			_ = resp.Body.Close()
		}
	}()
	<-entered

	err := srv.Shutdown(context.Background())
	assert.ErrorIs(t, err, httpserver.ErrShutdown)
	assert.ErrorIs(t, wait(t, done), httpserver.ErrShutdown)
}

func TestSignalShutdown(t *testing.T) {
	srv := newServer()
	done := start(t, srv, context.Background(), okHandler())

	p, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, p.Signal(syscall.SIGTERM))
	require.NoError(t, wait(t, done))
}

func TestNewFromConfig(t *testing.T) {
	cfg := httpserver.Config{Addr: "127.0.0.1:0", ShutdownTimeout: 50 * time.Millisecond}
	require.NoError(t, cfg.Validate())

	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(logger.Discard()))
	ctx, cancel := context.WithCancel(context.Background())
	done := start(t, srv, ctx, okHandler())
	cancel()
	require.NoError(t, wait(t, done))

	assert.Error(t, (&httpserver.Config{}).Validate())
	assert.Error(t, (&httpserver.Config{Addr: ":1"}).Validate())
}

func TestHealthHandler(t *testing.T) {
	serve := func(h http.Handler) (int, map[string]any) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec.Code, body
	}

	t.Run("liveness", func(t *testing.T) {
		code, body := serve(httpserver.HealthHandler(nil))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "alive", body["status"])
	})

	t.Run("ready", func(t *testing.T) {
		code, body := serve(httpserver.HealthHandler(logger.Discard(),
			httpserver.Check{Name: "redis", Fn: func(context.Context) error { return nil }},
		))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ready", body["status"])
		assert.Equal(t, map[string]any{"redis": "ok"}, body["checks"])
	})

	t.Run("not ready", func(t *testing.T) {
		code, body := serve(httpserver.HealthHandler(logger.Discard(),
			httpserver.Check{Name: "redis", Fn: func(context.Context) error { return errors.New("down") }},
			httpserver.Check{Name: "registry", Fn: func(context.Context) error { return nil }},
		))
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "not_ready", body["status"])
		assert.Equal(t, map[string]any{"redis": "fail", "registry": "ok"}, body["checks"])
	})
}
