package optimistic

import "errors"

// ErrUnknownMutation is returned when a sequence number is not tracked or has
// already been settled.
var ErrUnknownMutation = errors.New("optimistic: unknown or settled mutation")
