// Package push manages the device push subscription: the permission prompt,
// the platform push channel and its registration with the delivery registry.
//
// A Manager moves through the states
//
//	unsupported | idle -> checking -> subscribed | idle
//	idle | subscribed | error -> subscribing -> subscribed | error
//	                                          -> idle | subscribed (permission refused)
//	idle | subscribed | error -> unsubscribing -> idle
//
// Subscribe requests permission, fetches the server key from the registry,
// opens a user-visible channel with it and registers the resulting
// subscription under a device label. A channel is never registered before it
// is open, and a channel whose registration failed is closed again.
//
// Unsubscribe always attempts both the remote delete and the channel close.
// An endpoint that could not be deleted remotely is remembered and retried by
// Reconcile; the same happens when CheckStatus finds that the platform dropped
// or rotated a registered channel.
//
// Subscribe and Unsubscribe reject overlapping calls with ErrBusy. A
// CheckStatus that overlaps a later operation has its result discarded. Every
// network call runs under its own timeout and reports expiry as
// ErrNetworkFailure.
//
// Platform abstracts the device side. MemoryPlatform implements it in process
// for tests and command line tooling.
package push
