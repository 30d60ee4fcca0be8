package localstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/coocood/freecache"
)

// MemoryKV is a process local KV. Values are lost on restart and may be evicted when the cache is full.
type MemoryKV struct {
	cache *freecache.Cache
}

// NewMemoryKV creates a cache of sizeBytes; freecache enforces a 512KB minimum
// and rejects values larger than 1/1024 of the cache size.
func NewMemoryKV(sizeBytes int) *MemoryKV {
	return &MemoryKV{
		cache: freecache.NewCache(sizeBytes),
	}
}

func (kv *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	value, err := kv.cache.Get([]byte(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	return value, nil
}

func (kv *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	if err := kv.cache.Set([]byte(key), value, 0); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (kv *MemoryKV) Delete(_ context.Context, key string) error {
	kv.cache.Del([]byte(key))
	return nil
}
