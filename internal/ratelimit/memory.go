package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store interface using in-memory storage
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]*window
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

type window struct {
	count     int
	resetTime time.Time
}

// NewMemoryStore creates a memory store that evicts expired windows every
// cleanupInterval.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	store := &MemoryStore{
		data: make(map[string]*window),
		now:  time.Now,
		stop: make(chan struct{}),
	}

	go store.cleanup(cleanupInterval)
	return store
}

func (s *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for key, w := range s.data {
				if now.After(w.resetTime) {
					delete(s.data, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if w, exists := s.data[key]; exists && !now.After(w.resetTime) {
		return w.count, w.resetTime, nil
	}
	return 0, now, nil
}

func (s *MemoryStore) Increment(ctx context.Context, key string, resetTime time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.data[key]
	if !exists || s.now().After(w.resetTime) {
		s.data[key] = &window{count: 1, resetTime: resetTime}
		return 1, nil
	}
	w.count++
	return w.count, nil
}

func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
