package preferences

import "errors"

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("preferences: store closed")
