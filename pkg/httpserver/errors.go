package httpserver

import "errors"

var (
	// ErrStart indicates that the server failed to listen or serve.
	ErrStart = errors.New("httpserver: failed to start")

	// ErrShutdown indicates that in-flight requests did not drain in time.
	ErrShutdown = errors.New("httpserver: graceful shutdown failed")
)
