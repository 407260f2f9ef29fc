// Package optimistic tracks local mutations applied ahead of a remote
// confirmation.
//
// A component applies a change to its local state, records it with Begin and
// then issues the remote call. On success it calls Commit; on failure Rollback
// runs the compensating Undo registered for that mutation. Undo receives the
// mutations begun after the failed one, so it can leave alone anything a newer
// change has already overwritten.
//
// The queue also keeps settled mutations until they are pruned. A reader that
// notes s := Seq() before fetching a remote snapshot replays Outstanding(s)
// over it: every write still in flight or issued while the fetch ran.
//
//	q := optimistic.New[Patch]()
//	seq := q.Begin(patch, func(p Patch, later []Patch) { restore(p, later) })
//	if err := remote(ctx, patch); err != nil {
//	    q.Rollback(seq)
//	    return err
//	}
//	q.Commit(seq)
package optimistic
