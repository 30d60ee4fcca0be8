package localstore

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("key not found")

// KV is a minimal byte value key-value store.
type KV interface {
	// Get returns ErrKeyNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
