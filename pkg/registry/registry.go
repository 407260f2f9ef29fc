package registry

import "context"

// Registry is the remote store used by the subscription manager, the
// preference store and the notification feed.
type Registry interface {
	// VAPIDKey returns the server's application public key.
	VAPIDKey(ctx context.Context) (KeyInfo, error)

	// RegisterDevice stores a subscription under a human-readable label.
	RegisterDevice(ctx context.Context, sub Subscription, label string) error

	// UnregisterDevice removes the registration for endpoint. Unknown endpoints are not an error.
	UnregisterDevice(ctx context.Context, endpoint string) error

	// Preferences returns the stored preference record.
	Preferences(ctx context.Context) (Preferences, error)

	// UpdatePreferences applies patch. seq is a client-side monotonic counter;
	// the server keeps the write with the highest seq.
	UpdatePreferences(ctx context.Context, patch PreferencesPatch, seq uint64) error

	// ListNotifications returns up to limit notifications in no guaranteed order.
	ListNotifications(ctx context.Context, limit int) ([]Notification, error)

	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error

	// SendTest asks the server to deliver a synthetic push end to end.
	SendTest(ctx context.Context) error
}
