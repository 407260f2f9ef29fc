package feed

import "github.com/dmitrymomot/pushkit/pkg/registry"

// Filter selects notifications for List.
type Filter func(registry.Notification) bool

var (
	// All matches every notification.
	All Filter = func(registry.Notification) bool { return true }

	// Unread matches notifications not yet read.
	Unread Filter = func(n registry.Notification) bool { return !n.Read }
)

// OfKind matches notifications of kind.
func OfKind(kind registry.Kind) Filter {
	return func(n registry.Notification) bool { return n.Kind == kind }
}
