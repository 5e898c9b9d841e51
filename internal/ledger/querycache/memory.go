package querycache

import (
	"context"
	"path"
	"sync"
	"time"
)

type memoryItem struct {
	value   []byte
	expires time.Time
}

// MemoryStore is the in-process fallback used when no shared cache is
// configured. Call sites never branch on the backend; selection happens
// once at wiring time.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem), now: time.Now}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	if s.now().After(item.expires) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil, ErrMiss
	}
	return item.value, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.items[key] = memoryItem{value: append([]byte(nil), value...), expires: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeletePattern(ctx context.Context, glob string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.items {
		if ok, _ := path.Match(glob, key); ok {
			delete(s.items, key)
		}
	}
	return nil
}
