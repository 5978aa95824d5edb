// SPDX-License-Identifier: MIT

// Package stripe provides a fixed-width array of mutexes sharded by key
// hash, used exclusively by the Takeover Arbiter (spec §4.4/§9) to
// serialize concurrent CONNECTs sharing a client identifier. It is adapted
// from the teacher's fan-pool column-selection hash
// (github.com/mochi-mqtt/server/v2 fanpool.go Enqueue), repurposed from
// picking a worker queue to picking a lock.
package stripe

import (
	"runtime"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Locks is a fixed-size array of mutexes keyed by hash(key) mod N.
type Locks struct {
	mus []sync.Mutex
}

// DefaultCount returns 16 × GOMAXPROCS(0), the width spec §4.4 requires
// ("stripe_count = 16 × available_parallelism").
func DefaultCount() int {
	return 16 * runtime.GOMAXPROCS(0)
}

// New returns a new Locks with n stripes; a non-positive n is treated as
// 1.
func New(n int) *Locks {
	if n <= 0 {
		n = 1
	}
	return &Locks{mus: make([]sync.Mutex, n)}
}

// index returns the stripe index for key.
func (l *Locks) index(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(l.mus)))
}

// Lock acquires the stripe covering key.
func (l *Locks) Lock(key string) {
	l.mus[l.index(key)].Lock()
}

// Unlock releases the stripe covering key.
func (l *Locks) Unlock(key string) {
	l.mus[l.index(key)].Unlock()
}

// With runs fn with the stripe covering key held, releasing it even if fn
// panics.
func (l *Locks) With(key string, fn func()) {
	l.Lock(key)
	defer l.Unlock(key)
	fn()
}
