package service

import (
	"context"
	"sync"
	"time"
)

type sessionEntry struct {
	value  []byte
	expiry time.Time
}

// MemorySessionStore is a process-local SessionStore for single-instance
// deployments and tests. State does not survive restarts.
type MemorySessionStore struct {
	entries map[string]sessionEntry
	stopCh  chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemorySessionStore starts a janitor that drops expired entries every
// sweep interval. Call Close to stop it.
func NewMemorySessionStore(sweep time.Duration) *MemorySessionStore {
	if sweep <= 0 {
		sweep = 5 * time.Minute
	}
	s := &MemorySessionStore{
		entries: make(map[string]sessionEntry),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	go s.cleanup(sweep)
	return s
}

func (s *MemorySessionStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || !s.now().Before(entry.expiry) {
		return nil, false, nil
	}
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

func (s *MemorySessionStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = sessionEntry{value: stored, expiry: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemorySessionStore) cleanup(sweep time.Duration) {
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.purge()
		}
	}
}

func (s *MemorySessionStore) purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if !now.Before(entry.expiry) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Close stops the janitor. It is safe to call more than once.
func (s *MemorySessionStore) Close() {
	s.once.Do(func() { close(s.stopCh) })
}
