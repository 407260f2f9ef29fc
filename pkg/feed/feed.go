package feed

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/logger"
	"github.com/dmitrymomot/pushkit/pkg/optimistic"
	"github.com/dmitrymomot/pushkit/pkg/registry"
)

// Feed is the local cache of the notification feed. Safe for concurrent use;
// no lock is held across registry calls.
type Feed struct {
	registry    registry.Registry
	logger      *slog.Logger
	callTimeout time.Duration
	pageSize    int
	queue       *optimistic.Queue[op]

	mu         sync.Mutex
	items      []registry.Notification
	gen        uint64
	refreshing bool
	mark       uint64
	closed     bool
	lastErr    error
}

func New(reg registry.Registry, opts ...Option) *Feed {
	f := &Feed{
		registry:    reg,
		logger:      slog.Default(),
		callTimeout: 10 * time.Second,
		pageSize:    50,
		queue:       optimistic.New[op](),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// List returns the cached notifications matching filter, newest first.
// A nil filter matches everything.
func (f *Feed) List(filter Filter) []registry.Notification {
	if filter == nil {
		filter = All
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]registry.Notification, 0, len(f.items))
	for _, n := range f.items {
		if filter(n) {
			out = append(out, n)
		}
	}
	return out
}

// UnreadCount returns the number of cached unread notifications.
func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, item := range f.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// Len returns the number of cached notifications.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// LastError returns the error of the most recent failed call, nil after a success.
func (f *Feed) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Refresh replaces the cache with up to limit notifications from the registry.
// A refresh that completes after a newer one started is discarded. Mutations
// still in flight or issued while the page was fetched are applied on top.
func (f *Feed) Refresh(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = f.pageSize
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.gen++
	gen := f.gen
	mark := f.queue.Seq()
	f.refreshing, f.mark = true, mark
	f.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
	page, err := f.registry.ListNotifications(callCtx, limit)
	cancel()

	f.mu.Lock()
	if gen == f.gen {
		f.refreshing = false
	}
	switch {
	case f.closed:
		f.mu.Unlock()
		return ErrClosed
	case err != nil:
		err = networkError(err)
		f.lastErr = err
		f.mu.Unlock()

		f.logger.LogAttrs(ctx, slog.LevelWarn, "failed to refresh notifications",
			logger.Component("feed"),
			logger.Error(err),
		)
		return err
	case gen != f.gen:
		f.mu.Unlock()
		f.logger.LogAttrs(ctx, slog.LevelDebug, "stale notification page dropped",
			logger.Component("feed"),
			logger.Count(len(page)),
		)
		return nil
	}

	items := dedupe(page)
	for _, o := range f.queue.Outstanding(mark) {
		// the page is the new base: an undo flips back only what the
		// replay changed on it
		clear(o.flipped)
		items = o.apply(items)
	}
	sortNewestFirst(items)
	f.items = items
	f.lastErr = nil
	f.mu.Unlock()

	f.prune()
	return nil
}

// MarkRead marks id read locally, then on the registry. On failure the record
// becomes unread again unless a newer mutation touched it.
func (f *Feed) MarkRead(ctx context.Context, id string) error {
	return f.mutate(ctx, newOp(opMarkRead, id), func(callCtx context.Context) error {
		return f.registry.MarkRead(callCtx, id)
	})
}

// MarkAllRead marks every cached record read locally, then on the registry.
// On failure the records it changed, including those of a page refreshed
// meanwhile, become unread again unless a newer mutation touched them.
func (f *Feed) MarkAllRead(ctx context.Context) error {
	return f.mutate(ctx, newOp(opMarkAllRead, ""), f.registry.MarkAllRead)
}

// Delete removes id from the cache, then from the registry. On failure the
// record is put back.
func (f *Feed) Delete(ctx context.Context, id string) error {
	return f.mutate(ctx, newOp(opDelete, id), func(callCtx context.Context) error {
		return f.registry.DeleteNotification(callCtx, id)
	})
}

// Close makes results of calls still in flight no-ops.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *Feed) mutate(ctx context.Context, o op, remote func(context.Context) error) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	undo := f.capture(o)
	f.items = o.apply(f.items)
	seq := f.queue.Begin(o, undo)
	f.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
	err := networkError(remote(callCtx))
	cancel()

	if err != nil {
		_ = f.queue.Rollback(seq)

		f.mu.Lock()
		if !f.closed {
			f.lastErr = err
		}
		f.mu.Unlock()

		f.logger.LogAttrs(ctx, slog.LevelWarn, "notification "+o.kind.String()+" failed",
			logger.Component("feed"),
			logger.Operation(o.kind.String()),
			logger.NotificationID(o.id),
			logger.Error(err),
		)
		f.prune()
		return err
	}

	_ = f.queue.Commit(seq)

	f.mu.Lock()
	if !f.closed {
		f.lastErr = nil
	}
	f.mu.Unlock()

	f.prune()
	return nil
}

// capture returns the compensating action for o. Caller holds f.mu.
func (f *Feed) capture(o op) optimistic.Undo[op] {
	switch o.kind {
	case opMarkRead, opMarkAllRead:
		return f.markUnread

	case opDelete:
		i := f.index(o.id)
		if i < 0 {
			return nil
		}
		removed := f.items[i]
		return func(_ op, later []op) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.closed || f.index(removed.ID) >= 0 {
				return
			}
			restored := removed
			for _, l := range later {
				if !l.touches(removed.ID) {
					continue
				}
				if l.kind == opDelete {
					return
				}
				restored = l.apply([]registry.Notification{restored})[0]
			}
			f.items = append(f.items, restored)
			sortNewestFirst(f.items)
		}
	}
	return nil
}

// markUnread flips the records o marked read back to unread, skipping
// records a later mutation touched.
func (f *Feed) markUnread(o op, later []op) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for id := range o.flipped {
		if slices.ContainsFunc(later, func(l op) bool { return l.touches(id) }) {
			continue
		}
		if i := f.index(id); i >= 0 {
			f.items[i].Read = false
		}
	}
}

// prune drops settled mutations once nothing is in flight, keeping those a
// running Refresh still has to replay.
func (f *Feed) prune() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queue.Pending() > 0 {
		return
	}
	upTo := f.queue.Seq()
	if f.refreshing {
		upTo = f.mark
	}
	f.queue.Prune(upTo)
}

// index returns the position of id in the cache or -1. Caller holds f.mu.
func (f *Feed) index(id string) int {
	return slices.IndexFunc(f.items, func(n registry.Notification) bool { return n.ID == id })
}

// sortNewestFirst orders by creation time descending; equal timestamps are
// ordered by id descending so the order is stable across refreshes.
func sortNewestFirst(items []registry.Notification) {
	slices.SortFunc(items, func(a, b registry.Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// dedupe copies page keeping the first record per id.
func dedupe(page []registry.Notification) []registry.Notification {
	seen := make(map[string]struct{}, len(page))
	out := make([]registry.Notification, 0, len(page))
	for _, n := range page {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}

func networkError(err error) error {
	if err == nil || errors.Is(err, registry.ErrNetworkFailure) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(registry.ErrNetworkFailure, err)
	}
	return err
}
