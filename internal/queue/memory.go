package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

type memoryEntry struct {
	mu   sync.RWMutex
	item scrape.QueueItem
}

// MemoryStore is an in-process QueueStore for development and tests. Each
// item carries its own lock; status transitions are compare-and-set.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*memoryEntry
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*memoryEntry)}
}

// SaveItems persists a discovered batch. Discovery starts a new pass: an
// existing row for the same (sourceID, url) key is replaced by the fresh
// pending item. Prior-pass progress is reachable only through Resume, which
// never rediscovers.
func (s *MemoryStore) SaveItems(_ context.Context, items []scrape.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.items[item.SourceID+"|"+item.URL] = &memoryEntry{item: item}
	}
	return nil
}

// ListOpen returns non-terminal items for a source in position order.
func (s *MemoryStore) ListOpen(_ context.Context, sourceID string) ([]scrape.QueueItem, error) {
	s.mu.Lock()
	entries := make([]*memoryEntry, 0, len(s.items))
	for _, e := range s.items {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	var open []scrape.QueueItem
	for _, e := range entries {
		e.mu.RLock()
		item := e.item
		e.mu.RUnlock()
		if item.SourceID == sourceID && !item.Status.Terminal() {
			open = append(open, item)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].Position < open[j].Position })
	return open, nil
}

// UpdateStatus transitions an item atomically from the expected status.
func (s *MemoryStore) UpdateStatus(_ context.Context, itemID string, expected, next scrape.ItemStatus, item scrape.QueueItem) error {
	entry := s.find(itemID)
	if entry == nil {
		return fmt.Errorf("item %s: %w", itemID, scrape.ErrNotFound)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.item.Status != expected {
		return fmt.Errorf("item %s in status %s, expected %s: %w",
			itemID, entry.item.Status, expected, scrape.ErrNotFound)
	}
	item.Status = next
	entry.item = item
	return nil
}

// Get returns a copy of the stored item, for tests and diagnostics.
func (s *MemoryStore) Get(itemID string) (scrape.QueueItem, bool) {
	entry := s.find(itemID)
	if entry == nil {
		return scrape.QueueItem{}, false
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.item, true
}

func (s *MemoryStore) find(itemID string) *memoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.items {
		if e.item.ID == itemID {
			return e
		}
	}
	return nil
}
