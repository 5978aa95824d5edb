package session

import "sync"

// MemoryStore is the default Store: an in-memory map guarded by a mutex,
// grounded on the teacher's Clients type
// (internal/clients/clients.go, RWMutex + map[string]*Client), narrowed
// to the one field this core needs per client identifier.
type MemoryStore struct {
	mu          sync.RWMutex
	records     map[string]Record
	sharedCache map[string]struct{}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:     make(map[string]Record),
		sharedCache: make(map[string]struct{}),
	}
}

// Exists reports whether clientID has a recorded session.
func (s *MemoryStore) Exists(clientID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[clientID]
	return ok
}

// StartPersistence records clientID's session and resolves immediately;
// the in-memory store has no I/O latency to hide behind an async Future,
// but still returns one to satisfy the Store contract uniformly with
// BoltStore.
func (s *MemoryStore) StartPersistence(clientID string, sessionExists bool, effectiveExpiry uint32) *Future {
	s.mu.Lock()
	s.records[clientID] = Record{ClientID: clientID, SessionExpiryInterval: effectiveExpiry}
	s.mu.Unlock()

	f := newFuture()
	f.resolve(sessionExists)
	return f
}

// InvalidateSharedCache drops the shared-subscription cache entry for
// clientID, if any.
func (s *MemoryStore) InvalidateSharedCache(clientID string) {
	s.mu.Lock()
	delete(s.sharedCache, clientID)
	s.mu.Unlock()
}
