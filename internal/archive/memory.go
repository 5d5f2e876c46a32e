package archive

import (
	"context"
	"sync"
)

// MemoryStore keeps archived snapshots in memory for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Archive records the data under path and returns a mem:// URI.
func (s *MemoryStore) Archive(_ context.Context, path, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[path] = buf
	return "mem://" + path, nil
}

// Object returns an archived snapshot by path.
func (s *MemoryStore) Object(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[path]
	return data, ok
}
