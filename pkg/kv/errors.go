package kv

import "errors"

var (
	ErrNotFound  = errors.New("kv: key not found")
	ErrEmptyKey  = errors.New("kv: empty key")
	ErrCorrupted = errors.New("kv: stored value cannot be decoded")
	ErrStoreIO   = errors.New("kv: storage failure")
)
