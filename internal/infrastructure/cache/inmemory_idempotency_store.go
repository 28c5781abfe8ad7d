// Package cache provides the idempotency stores the event relay uses
// to drop duplicate deliveries.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/labstock/backend/internal/domain/shared"
)

const inMemoryCleanupInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps processed event IDs in a map with
// per-entry expiry. Single-instance only: state is lost on restart and
// never shared across processes.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	seen      map[string]time.Time // event ID -> expiry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates the store and starts its expiry
// sweeper.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		seen:     make(map[string]time.Time),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.sweepLoop()

	return store
}

// MarkProcessed records eventID for ttl. It reports false when the
// event was already recorded and has not yet expired.
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, exists := s.seen[eventID]; exists && time.Now().Before(expiry) {
		return false, nil
	}

	s.seen[eventID] = time.Now().Add(ttl)
	return true, nil
}

// IsProcessed reports whether eventID is recorded and unexpired.
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiry, exists := s.seen[eventID]
	return exists && time.Now().Before(expiry), nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(inMemoryCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for eventID, expiry := range s.seen {
		if now.After(expiry) {
			delete(s.seen, eventID)
		}
	}
}

// Size reports the number of recorded IDs, expired or not.
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
