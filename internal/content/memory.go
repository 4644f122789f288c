package content

import (
	"context"
	"sync"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

type assetKey struct {
	bookID string
	kind   string
}

// MemoryStore is an in-memory asset store for tests and storeless runs.
// All methods are safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	assets map[assetKey][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{assets: make(map[assetKey][]byte)}
}

// Asset implements [Store].
func (s *MemoryStore) Asset(_ context.Context, bookID, kind string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.assets[assetKey{bookID, kind}]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// PutAsset implements [Store].
func (s *MemoryStore) PutAsset(_ context.Context, bookID, kind string, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[assetKey{bookID, kind}] = stored
	return nil
}
