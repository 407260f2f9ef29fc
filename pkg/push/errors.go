package push

import (
	"errors"

	"github.com/dmitrymomot/pushkit/pkg/registry"
	"github.com/dmitrymomot/pushkit/pkg/vapid"
)

var (
	// ErrUnsupported is returned by every mutating call on a platform without push support.
	ErrUnsupported = errors.New("push: not supported on this platform")

	// ErrPermissionDenied is returned when the user refused notifications.
	ErrPermissionDenied = errors.New("push: permission denied")

	// ErrBusy rejects a subscribe or unsubscribe while another one is running.
	ErrBusy = errors.New("push: another subscription change is in progress")

	// ErrChannel wraps failures of the platform push channel.
	ErrChannel = errors.New("push: channel operation failed")

	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("push: manager closed")
)

// Shared taxonomy, re-exported so callers only import this package.
var (
	ErrServiceUnavailable = registry.ErrServiceUnavailable
	ErrNetworkFailure     = registry.ErrNetworkFailure
	ErrInvalidKeyFormat   = vapid.ErrInvalidKeyFormat
)
