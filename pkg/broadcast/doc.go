// Package broadcast fans typed messages out to in-process subscribers.
//
// Broadcast never blocks: a subscriber whose buffer is full misses the message
// and is dropped. Subscriptions end when their context is cancelled, when
// Close is called on them or when the broadcaster is closed.
//
//	b := broadcast.NewMemoryBroadcaster[registry.PushPayload](broadcast.WithBufferSize(16))
//	defer b.Close()
//
//	sub := b.Subscribe(ctx)
//	defer sub.Close()
//
//	_ = b.Broadcast(ctx, broadcast.Message[registry.PushPayload]{Data: payload})
//
//	for msg := range sub.Receive(ctx) {
//		fmt.Println(msg.Data.Title)
//	}
package broadcast
