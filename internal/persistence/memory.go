package persistence

import (
	"context"

	"github.com/zjrosen/diagramdesk/internal/cachemanager"
)

// MemoryStore is a process-local KVStore backed by the in-memory cache
// manager with expiration disabled.
type MemoryStore struct {
	cache *cachemanager.InMemoryCacheManager[string, string]
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: cachemanager.NewInMemoryCacheManager[string, string]("kv", cachemanager.NoExpiration, 0),
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.cache.Get(ctx, key)
	return v, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	m.cache.Set(ctx, key, value, cachemanager.NoExpiration)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	return m.cache.Delete(ctx, key)
}

// Keys lists the keys starting with prefix.
func (m *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return m.cache.Keys(prefix), nil
}

func (m *MemoryStore) Close() error {
	return m.cache.Flush(context.Background())
}
