// Package preferences keeps the user's notification delivery preferences in
// sync with the registry.
//
// A Store serves a local copy that is never undefined: the defaults, then the
// last persisted snapshot, then whatever the registry returned. Set applies a
// patch locally right away and sends it in the background of the call; when
// the registry rejects it, only the fields no newer Set has touched are put
// back.
//
//	store := preferences.NewStore(client, preferences.WithStore(kvStore))
//	if _, err := store.Load(ctx); err != nil {
//	    // stale snapshot is still served
//	}
//	prefs, err := store.Set(ctx, preferences.Patch{Marketing: registry.Bool(true)})
//
// Every write carries a monotonic sequence number derived from the wall clock,
// so the registry can keep the latest write across devices and restarts.
package preferences
