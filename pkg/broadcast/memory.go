package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/logger"
)

// MemoryBroadcaster is an in-process Broadcaster. Safe for concurrent use.
type MemoryBroadcaster[T any] struct {
	bufferSize int
	logger     *slog.Logger
	now        func() time.Time

	mu          sync.RWMutex
	subscribers map[*subscriber[T]]struct{}
	closed      bool
	done        chan struct{}
	cleanupWg   sync.WaitGroup
}

var _ Broadcaster[int] = (*MemoryBroadcaster[int])(nil)

// MemoryOption configures a MemoryBroadcaster.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	bufferSize int
	logger     *slog.Logger
}

// WithBufferSize sets the per-subscriber buffer. Minimum and default is 1.
func WithBufferSize(n int) MemoryOption {
	return func(c *memoryConfig) { c.bufferSize = n }
}

// WithLogger sets the logger used to report dropped subscribers.
func WithLogger(l *slog.Logger) MemoryOption {
	return func(c *memoryConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewMemoryBroadcaster[T any](opts ...MemoryOption) *MemoryBroadcaster[T] {
	cfg := memoryConfig{bufferSize: 1, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MemoryBroadcaster[T]{
		bufferSize:  max(cfg.bufferSize, 1),
		logger:      cfg.logger,
		now:         time.Now,
		subscribers: make(map[*subscriber[T]]struct{}),
		done:        make(chan struct{}),
	}
}

// Subscribe registers a subscriber removed when ctx is done. After Close it
// returns an already closed subscriber.
func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscriber[T](b.bufferSize)
	if b.closed {
		_ = sub.Close()
		return sub
	}
	b.subscribers[sub] = struct{}{}

	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			select {
			case <-ctx.Done():
				b.unsubscribe(sub)
			case <-b.done:
			}
		}()
	}
	return sub
}

// Broadcast sends msg to every subscriber. A subscriber that cannot take it
// right away is dropped.
func (b *MemoryBroadcaster[T]) Broadcast(ctx context.Context, msg Message[T]) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = b.now()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	var slow []*subscriber[T]
	for sub := range b.subscribers {
		if !sub.send(msg) {
			slow = append(slow, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range slow {
		b.unsubscribe(sub)
	}
	if len(slow) > 0 {
		b.logger.LogAttrs(ctx, slog.LevelDebug, "dropped slow subscribers",
			logger.Component("broadcast"),
			logger.Count(len(slow)),
		)
	}
	return nil
}

// Subscribers returns the number of active subscriptions.
func (b *MemoryBroadcaster[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close ends every subscription. Safe to call more than once.
func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for sub := range b.subscribers {
		_ = sub.Close()
	}
	clear(b.subscribers)
	close(b.done)
	b.mu.Unlock()

	b.cleanupWg.Wait()
	return nil
}

func (b *MemoryBroadcaster[T]) unsubscribe(sub *subscriber[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, sub)
	_ = sub.Close()
}
