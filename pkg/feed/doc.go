// Package feed caches the user's notification feed and applies read and
// delete actions optimistically.
//
// Every mutation changes the local cache first and is then sent to the
// registry. A failed call puts the touched records back the way they were,
// unless a newer mutation has since changed them. Refresh replaces the cache
// with a fresh page and replays mutations the server may not have reflected
// yet, so a MarkAllRead racing a Refresh still leaves every record read.
//
//	f := feed.New(client)
//	if err := f.Refresh(ctx, 50); err != nil {
//	    return err
//	}
//	for _, n := range f.List(feed.Unread) {
//	    fmt.Println(n.Title)
//	}
package feed
