package feed

import (
	"errors"

	"github.com/dmitrymomot/pushkit/pkg/registry"
)

var (
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("feed: closed")

	// ErrNotFound is returned by the registry for unknown notification ids.
	ErrNotFound = registry.ErrNotFound
)
