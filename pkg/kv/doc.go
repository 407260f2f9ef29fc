// Package kv is the small key-value port pushkit components persist through.
//
// A Store maps string keys to opaque byte values. Three implementations ship
// with the package:
//
//   - Memory keeps everything in process and is the default for tests.
//   - Redis stores values in a go-redis UniversalClient under a key prefix.
//   - File keeps a single JSON document on disk so command line tools retain
//     state between runs.
//
// Missing keys are reported with ErrNotFound. The JSON helpers GetJSON and
// SetJSON cover the common case of storing a typed snapshot:
//
//	var snap preferences.Preferences
//	err := kv.GetJSON(ctx, store, "preferences", &snap)
//	if errors.Is(err, kv.ErrNotFound) {
//	    // nothing persisted yet
//	}
package kv
