package feed

import (
	"slices"

	"github.com/dmitrymomot/pushkit/pkg/registry"
)

type opKind int

const (
	opMarkRead opKind = iota
	opMarkAllRead
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opMarkRead:
		return "mark_read"
	case opMarkAllRead:
		return "mark_all_read"
	case opDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// op is a feed mutation that can be replayed over any page.
type op struct {
	kind opKind
	id   string
	// flipped holds the ids a mark op turned from unread to read on the
	// current cache. Shared by every copy of the op; guarded by Feed.mu.
	flipped map[string]struct{}
}

func newOp(kind opKind, id string) op {
	o := op{kind: kind, id: id}
	if kind == opMarkRead || kind == opMarkAllRead {
		o.flipped = make(map[string]struct{})
	}
	return o
}

// apply returns items with the mutation applied. items may be modified in place.
func (o op) apply(items []registry.Notification) []registry.Notification {
	switch o.kind {
	case opMarkRead, opMarkAllRead:
		for i := range items {
			if o.kind == opMarkRead && items[i].ID != o.id {
				continue
			}
			if !items[i].Read && o.flipped != nil {
				o.flipped[items[i].ID] = struct{}{}
			}
			items[i].Read = true
		}
	case opDelete:
		items = slices.DeleteFunc(items, func(n registry.Notification) bool { return n.ID == o.id })
	}
	return items
}

// touches reports whether o changes the record with id.
func (o op) touches(id string) bool {
	return o.kind == opMarkAllRead || o.id == id
}
