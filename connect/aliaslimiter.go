package connect

import "sync"

// TopicAliasLimiter is the collaborator spec.md §6 describes:
// aliases_available() → bool; init_usage(n). It maintains a single global
// counter shared across channels, atomic with respect to itself (spec.md
// §5 "Shared resources... aliases_available() and init_usage(n) must be
// atomic with respect to each other").
type TopicAliasLimiter struct {
	mu        sync.Mutex
	limit     uint32
	allocated uint32
}

// NewTopicAliasLimiter returns a limiter capping total allocated aliases
// at limit.
func NewTopicAliasLimiter(limit uint32) *TopicAliasLimiter {
	return &TopicAliasLimiter{limit: limit}
}

// AliasesAvailable reports whether the limiter has any headroom left.
func (l *TopicAliasLimiter) AliasesAvailable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allocated < l.limit
}

// InitUsage reserves n aliases, clamped to whatever headroom remains, and
// returns the number actually reserved.
func (l *TopicAliasLimiter) InitUsage(n uint16) uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()

	headroom := l.limit - l.allocated
	if uint32(n) > headroom {
		n = uint16(headroom)
	}
	l.allocated += uint32(n)
	return n
}

// Release returns n previously reserved aliases to the pool, called when
// a channel closes.
func (l *TopicAliasLimiter) Release(n uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if uint32(n) > l.allocated {
		n = uint16(l.allocated)
	}
	l.allocated -= uint32(n)
}
