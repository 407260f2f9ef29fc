package vapid

import "errors"

var (
	// ErrInvalidKeyFormat is returned when a key cannot be decoded or decodes to nothing.
	ErrInvalidKeyFormat = errors.New("vapid: invalid key format")

	// ErrInvalidPublicKey is returned when decoded bytes are not an uncompressed P-256 point.
	ErrInvalidPublicKey = errors.New("vapid: not an uncompressed P-256 public key")
)
