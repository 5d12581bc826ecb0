package idempotency

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	orderID   string
	expiresAt time.Time
}

// MemoryStore is a process-local Store for single-instance deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Lookup(ctx context.Context, userID, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := scoped(userID, key)
	e, ok := s.entries[k]
	if !ok {
		return "", nil
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, k)
		return "", nil
	}
	return e.orderID, nil
}

func (s *MemoryStore) Remember(ctx context.Context, userID, key, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := scoped(userID, key)
	now := s.now()
	if e, ok := s.entries[k]; ok && !now.After(e.expiresAt) {
		return nil
	}
	s.entries[k] = entry{orderID: orderID, expiresAt: now.Add(s.ttl)}
	return nil
}
