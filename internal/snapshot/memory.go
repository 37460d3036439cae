package snapshot

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store used in tests and single-node
// development runs. Expiry is checked on read; last writer wins.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Snapshot
	ttl     time.Duration

	// Now is swappable so tests can age entries without sleeping.
	Now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore. ttl <= 0 selects DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]Snapshot),
		ttl:     ttl,
		Now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, fp string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.entries[fp]
	if !ok {
		return nil, nil
	}
	if s.Now().Sub(snap.StoredAt) > s.ttl {
		delete(s.entries, fp)
		return nil, nil
	}
	out := snap
	return &out, nil
}

func (s *MemoryStore) Put(_ context.Context, fp string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[fp] = snap
	return nil
}
