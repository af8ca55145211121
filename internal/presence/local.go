package presence

import (
	"context"
	"strings"
	"sync"
	"time"
)

// LocalStore is an in-process presence store for development and tests.
// Production runs against Redis; per-process counts would diverge across
// instances.
type LocalStore struct {
	mu     sync.Mutex
	counts map[string]int64
	expiry map[string]time.Time
	now    func() time.Time
}

// NewLocalStore creates an in-memory presence store.
func NewLocalStore() *LocalStore {
	return &LocalStore{
		counts: make(map[string]int64),
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Close is a no-op for the local store.
func (s *LocalStore) Close() error {
	return nil
}

// evict drops the key if its TTL has passed. Caller holds the lock.
func (s *LocalStore) evict(key string) {
	if deadline, ok := s.expiry[key]; ok && s.now().After(deadline) {
		delete(s.counts, key)
		delete(s.expiry, key)
	}
}

// Increment atomically increments a group's count and refreshes its TTL.
func (s *LocalStore) Increment(ctx context.Context, group string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(group)
	s.evict(key)
	s.counts[key]++
	s.expiry[key] = s.now().Add(TTLSeconds * time.Second)
	return s.counts[key], nil
}

// Decrement atomically decrements a group's count, clamped at zero.
func (s *LocalStore) Decrement(ctx context.Context, group string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(group)
	s.evict(key)
	if s.counts[key] > 0 {
		s.counts[key]--
	}
	s.expiry[key] = s.now().Add(TTLSeconds * time.Second)
	return s.counts[key], nil
}

// Get returns the current count, or zero if the key is absent or expired.
func (s *LocalStore) Get(ctx context.Context, group string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(group)
	s.evict(key)
	return s.counts[key], nil
}

// Reset removes every presence count along with its expiry bookkeeping.
func (s *LocalStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.counts {
		if strings.HasPrefix(key, keyPrefix) {
			delete(s.counts, key)
			delete(s.expiry, key)
		}
	}
	return nil
}
