package quarantine

import (
	"context"
	"sync"
	"time"
)

// Store holds at most one expiry per group.
type Store interface {
	// Arm replaces any flag of the group.
	Arm(ctx context.Context, groupID int64, expiresAt time.Time, ttl time.Duration) error
	Get(ctx context.Context, groupID int64) (time.Time, bool, error)
	// ClearIf removes the flag only while it still expires at expiresAt.
	ClearIf(ctx context.Context, groupID int64, expiresAt time.Time) (bool, error)
}

// MemStore keeps flags in process memory. Expired entries that no reaper
// cleared are dropped by a periodic sweep.
type MemStore struct {
	flags map[int64]time.Time
	mu    sync.RWMutex
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

func NewMemStore(sweepEvery time.Duration) *MemStore {
	s := &MemStore{
		flags: make(map[int64]time.Time),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	if sweepEvery > 0 {
		go s.cleanupExpired(sweepEvery)
	}
	return s
}

func (s *MemStore) Arm(_ context.Context, groupID int64, expiresAt time.Time, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[groupID] = expiresAt
	return nil
}

func (s *MemStore) Get(_ context.Context, groupID int64) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.flags[groupID]
	return exp, ok, nil
}

func (s *MemStore) ClearIf(_ context.Context, groupID int64, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.flags[groupID]
	if !ok || !exp.Equal(expiresAt) {
		return false, nil
	}
	delete(s.flags, groupID)
	return true, nil
}

func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.flags)
}

func (s *MemStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *MemStore) cleanupExpired(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for groupID, exp := range s.flags {
		if !now.Before(exp) {
			delete(s.flags, groupID)
			removed++
		}
	}
	return removed
}
