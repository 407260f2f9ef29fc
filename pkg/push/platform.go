package push

import (
	"context"

	"github.com/dmitrymomot/pushkit/pkg/registry"
)

// Permission is the user's answer to the notification prompt.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ChannelOptions are passed to Platform.OpenChannel.
type ChannelOptions struct {
	// ServerKey is the decoded application server public key.
	ServerKey []byte
	// UserVisibleOnly promises every push results in a visible notification.
	UserVisibleOnly bool
}

// Platform is the device-side push transport: the permission prompt and the
// push channel the operating system or browser keeps for this application.
type Platform interface {
	Supported() bool
	Permission(ctx context.Context) (Permission, error)
	// RequestPermission may prompt the user. It returns the resulting permission.
	RequestPermission(ctx context.Context) (Permission, error)
	// OpenChannel returns the active subscription, creating one if needed.
	OpenChannel(ctx context.Context, opts ChannelOptions) (*registry.Subscription, error)
	// CloseChannel drops the active subscription. Closing without one is not an error.
	CloseChannel(ctx context.Context) error
	// ActiveChannel returns the current subscription or nil.
	ActiveChannel(ctx context.Context) (*registry.Subscription, error)
}
