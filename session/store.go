// Package session implements the SessionStore collaborator spec.md §6
// describes: exists(client_id), start_persistence(connect, session_exists,
// expiry), invalidate_shared_cache(client_id). Grounded on the teacher's
// bolt storage hook (github.com/mochi-mqtt/server/v2
// hooks/storage/bolt/bolt.go) for the bbolt-backed implementation, and on
// the teacher's in-memory Clients map (internal/clients/clients.go) for
// the default MemoryStore — narrowed from the teacher's full
// clients/subscriptions/retained/inflight record set down to the one
// record this core cares about: whether a session exists for a client
// identifier, and at what effective expiry.
package session

import (
	"context"
	"sync"
)

// Record is the persisted state of one client's session.
type Record struct {
	ClientID              string
	SessionExpiryInterval uint32
}

// Future resolves once a start-persistence round trip completes, carrying
// whether a prior session was actually present (spec.md §4.5 step 3: "wait
// for its completion event").
type Future struct {
	done           chan struct{}
	once           sync.Once
	sessionPresent bool
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(sessionPresent bool) {
	f.once.Do(func() {
		f.sessionPresent = sessionPresent
		close(f.done)
	})
}

// Wait blocks until the persistence round trip completes, or ctx is done,
// and returns the resolved session-present flag.
func (f *Future) Wait(ctx context.Context) (bool, error) {
	select {
	case <-f.done:
		return f.sessionPresent, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Store is the SessionStore collaborator interface.
type Store interface {
	// Exists reports whether a session is already recorded for
	// clientID.
	Exists(clientID string) bool

	// StartPersistence begins persisting the session implied by a
	// CONNECT and returns a Future resolving to the session-present
	// flag the Session Installer should put in the CONNACK.
	StartPersistence(clientID string, sessionExists bool, effectiveExpiry uint32) *Future

	// InvalidateSharedCache drops any shared-subscription cache entry
	// for clientID (spec.md §4.5 step 4).
	InvalidateSharedCache(clientID string)
}
