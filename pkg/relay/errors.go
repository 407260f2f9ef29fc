package relay

import "errors"

// ErrInvalidPayload is returned by Loopback for payloads that are not JSON push payloads.
var ErrInvalidPayload = errors.New("relay: invalid push payload")
