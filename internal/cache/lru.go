package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store with size-based LRU eviction. Expiry is
// handled by Local, so entries never age out here. A non-positive maxSize
// disables eviction.
type MemoryStore struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	lru     *list.List
}

type memoryItem struct {
	key  string
	data []byte
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Get retrieves a copy of the stored value.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	s.lru.MoveToFront(elem)
	data := elem.Value.(*memoryItem).data
	return append([]byte(nil), data...), nil
}

// Put stores a copy of value, evicting the least recently used entry when full.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := &memoryItem{key: key, data: append([]byte(nil), value...)}
	if elem, ok := s.items[key]; ok {
		elem.Value = item
		s.lru.MoveToFront(elem)
		return nil
	}

	s.items[key] = s.lru.PushFront(item)
	if s.maxSize > 0 && s.lru.Len() > s.maxSize {
		if oldest := s.lru.Back(); oldest != nil {
			s.removeElement(oldest)
		}
	}
	return nil
}

// Delete removes a key from the store
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		s.removeElement(elem)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, elem := range s.items {
		if strings.HasPrefix(key, prefix) {
			s.removeElement(elem)
		}
	}
	return nil
}

// Size returns the current number of items in the store
func (s *MemoryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *MemoryStore) removeElement(elem *list.Element) {
	delete(s.items, elem.Value.(*memoryItem).key)
	s.lru.Remove(elem)
}
