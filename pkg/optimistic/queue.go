package optimistic

import (
	"slices"
	"sync"
)

type status int

const (
	pending status = iota
	committed
	rolledBack
)

// Undo compensates for a failed mutation. later holds the values of every
// mutation begun after it that has not been rolled back, oldest first.
type Undo[M any] func(value M, later []M)

type mutation[M any] struct {
	seq    uint64
	value  M
	status status
	undo   Undo[M]
}

// Queue is a log of optimistic mutations ordered by sequence number.
// Safe for concurrent use; Undo callbacks run without the queue lock held.
type Queue[M any] struct {
	mu  sync.Mutex
	seq uint64
	log []*mutation[M]
}

func New[M any]() *Queue[M] {
	return &Queue[M]{}
}

// Begin records a pending mutation and returns its sequence number.
// Sequence numbers start at 1 and never repeat.
func (q *Queue[M]) Begin(value M, undo Undo[M]) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	q.log = append(q.log, &mutation[M]{seq: q.seq, value: value, status: pending, undo: undo})
	return q.seq
}

// Commit marks a pending mutation as confirmed.
func (q *Queue[M]) Commit(seq uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	m := q.find(seq)
	if m == nil || m.status != pending {
		return ErrUnknownMutation
	}
	m.status = committed
	return nil
}

// Rollback marks a pending mutation as failed and runs its Undo.
func (q *Queue[M]) Rollback(seq uint64) error {
	q.mu.Lock()
	m := q.find(seq)
	if m == nil || m.status != pending {
		q.mu.Unlock()
		return ErrUnknownMutation
	}
	m.status = rolledBack

	var later []M
	for _, other := range q.log {
		if other.seq > seq && other.status != rolledBack {
			later = append(later, other.value)
		}
	}
	undo, value := m.undo, m.value
	q.mu.Unlock()

	if undo != nil {
		undo(value, later)
	}
	return nil
}

// Seq returns the last issued sequence number, 0 if none.
func (q *Queue[M]) Seq() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seq
}

// Outstanding returns values of mutations that are still pending or were
// issued after seq, skipping rolled back ones, oldest first. It is what must
// be replayed over a snapshot fetched after seq was observed.
func (q *Queue[M]) Outstanding(seq uint64) []M {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []M
	for _, m := range q.log {
		if m.status == rolledBack {
			continue
		}
		if m.status == pending || m.seq > seq {
			out = append(out, m.value)
		}
	}
	return out
}

// Pending returns the number of unsettled mutations.
func (q *Queue[M]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, m := range q.log {
		if m.status == pending {
			n++
		}
	}
	return n
}

// Prune drops settled mutations with a sequence number up to and including
// seq. Pending mutations are always kept.
func (q *Queue[M]) Prune(seq uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.log = slices.DeleteFunc(q.log, func(m *mutation[M]) bool {
		return m.seq <= seq && m.status != pending
	})
}

func (q *Queue[M]) find(seq uint64) *mutation[M] {
	i, found := slices.BinarySearchFunc(q.log, seq, func(m *mutation[M], s uint64) int {
		switch {
		case m.seq < s:
			return -1
		case m.seq > s:
			return 1
		}
		return 0
	})
	if !found {
		return nil
	}
	return q.log[i]
}
