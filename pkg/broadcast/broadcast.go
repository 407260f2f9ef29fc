package broadcast

import (
	"context"
	"sync"
	"time"
)

// Message carries one broadcast value.
type Message[T any] struct {
	Data T
	// SentAt is set by Broadcast when left zero.
	SentAt time.Time
}

// Subscriber receives messages from a Broadcaster.
type Subscriber[T any] interface {
	// Receive returns the message channel. It is closed when the
	// subscription ends.
	Receive(ctx context.Context) <-chan Message[T]

	// Close ends the subscription. Safe to call more than once.
	Close() error
}

// Broadcaster sends messages to every active subscriber.
type Broadcaster[T any] interface {
	// Subscribe registers a subscriber for the lifetime of ctx.
	Subscribe(ctx context.Context) Subscriber[T]

	// Broadcast delivers msg without blocking; slow subscribers miss it.
	Broadcast(ctx context.Context, msg Message[T]) error

	// Close ends every subscription.
	Close() error
}

type subscriber[T any] struct {
	mu     sync.RWMutex
	ch     chan Message[T]
	closed bool
}

func newSubscriber[T any](size int) *subscriber[T] {
	return &subscriber[T]{ch: make(chan Message[T], size)}
}

func (s *subscriber[T]) Receive(context.Context) <-chan Message[T] {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

// send reports false when the subscriber is closed or its buffer is full.
func (s *subscriber[T]) send(msg Message[T]) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}
