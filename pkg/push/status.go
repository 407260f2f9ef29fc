package push

import "github.com/dmitrymomot/pushkit/pkg/registry"

// Status is a point-in-time snapshot of the manager.
type Status struct {
	State      State
	Supported  bool
	Subscribed bool
	Permission Permission
	// Subscription is the channel last seen on the platform, nil if none.
	Subscription *registry.Subscription
	Label        string
	// PendingCleanup lists endpoints whose remote registration still has to be
	// removed; see Manager.Reconcile.
	PendingCleanup []string
	// LastError is the error of the most recent failed operation. It does not
	// change State or Subscribed on its own.
	LastError error
}
