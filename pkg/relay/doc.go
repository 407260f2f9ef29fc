// Package relay turns incoming push payloads into feed refreshes.
//
// A push only says that something changed; the feed is the source of truth.
// Relay subscribes to a broadcaster of payloads, waits for a burst to settle
// and refreshes the feed once:
//
//	payloads := broadcast.NewMemoryBroadcaster[registry.PushPayload](broadcast.WithBufferSize(32))
//	r := relay.New(payloads, notifications, relay.WithDebounce(500*time.Millisecond))
//	go r.Run(ctx)
//
// Loopback is a registry.Pusher that feeds the same broadcaster, so an
// in-process registry can exercise the whole delivery path without a push
// service.
package relay
