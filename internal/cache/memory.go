package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store. The clock is injectable so tests can
// move time forward without sleeping.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	owners  map[int64]map[string]struct{}
	now     func() time.Time
}

// NewMemoryStore creates an empty store using the wall clock
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates an empty store reading time from now
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		owners:  make(map[int64]map[string]struct{}),
		now:     now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(e.expiresAt) {
		s.remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	for _, owner := range Owners(key) {
		keys, ok := s.owners[owner]
		if !ok {
			keys = make(map[string]struct{})
			s.owners[owner] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) InvalidateUser(ctx context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.owners[userID] {
		if _, ok := s.entries[key]; ok {
			removed++
		}
		s.remove(key)
	}
	delete(s.owners, userID)
	return removed, nil
}

func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			s.remove(key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// remove drops key and its reverse index entries. Caller holds mu.
func (s *MemoryStore) remove(key string) {
	delete(s.entries, key)
	for _, owner := range Owners(key) {
		if keys, ok := s.owners[owner]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(s.owners, owner)
			}
		}
	}
}
