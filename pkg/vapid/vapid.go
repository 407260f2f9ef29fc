package vapid

import (
	"encoding/base64"
	"errors"
	"strings"
)

// PublicKeyLen is the length of an uncompressed P-256 point (0x04 || X || Y).
const PublicKeyLen = 65

var urlSafe = strings.NewReplacer("-", "+", "_", "/")

// DecodeServerKey decodes a URL-safe base64 key with optional padding.
// The input is right-padded with '=' to a multiple of four, translated to the
// standard alphabet and decoded. Decoding errors and empty results both yield
// ErrInvalidKeyFormat.
func DecodeServerKey(key string) ([]byte, error) {
	if rem := len(key) % 4; rem != 0 {
		key += strings.Repeat("=", 4-rem)
	}

	raw, err := base64.StdEncoding.DecodeString(urlSafe.Replace(key))
	if err != nil {
		return nil, errors.Join(ErrInvalidKeyFormat, err)
	}
	if len(raw) == 0 {
		return nil, ErrInvalidKeyFormat
	}

	return raw, nil
}

// EncodeServerKey is the inverse of DecodeServerKey: unpadded URL-safe base64.
func EncodeServerKey(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ValidatePublicKey reports whether raw looks like an application server key
// accepted by push services.
func ValidatePublicKey(raw []byte) error {
	if len(raw) != PublicKeyLen || raw[0] != 0x04 {
		return ErrInvalidPublicKey
	}
	return nil
}
