// SPDX-License-Identifier: MIT

// Package taskpool provides a bounded extension task queue for
// authenticator work (spec §4.2, §5, §6 ExtensionAuthenticators .submit):
// the submit function given to extauth.NewAuthenticators can delegate to
// Pool.Submit. The Will-Authorization Stage calls its authorizers directly
// and does not use the pool. It is adapted from the teacher's Pool
// (github.com/mochi-mqtt/server/v2 pool.go): same fixed worker-goroutine
// shape, but Submit is non-blocking — the teacher's Enqueue blocks the
// caller when the queue is full, whereas spec §4.2/§7 requires queue-full
// to be treated as a non-fatal "continue" verdict rather than backpressure.
package taskpool

import (
	"sync"
	"sync/atomic"
)

// Task is a unit of work submitted to the pool.
type Task func()

// Pool is a fixed-size worker pool with a bounded queue and a
// non-blocking Submit.
type Pool struct {
	queue    chan Task
	wg       sync.WaitGroup
	capacity uint64
	overflow atomic.Uint64
}

// New starts a Pool with workers goroutines draining a queue of the given
// capacity.
func New(workers, queueCapacity int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueCapacity <= 0 {
		queueCapacity = 1
	}

	p := &Pool{
		queue: make(chan Task, queueCapacity),
	}
	atomic.StoreUint64(&p.capacity, uint64(workers))

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		task()
	}
}

// Submit enqueues task for execution and returns true, or returns false
// immediately without running task if the queue is full. Callers whose
// Submit returns false must apply the policy spec §4.2 assigns to a
// refused task (treat it as an abstaining CONTINUE verdict).
func (p *Pool) Submit(task Task) bool {
	select {
	case p.queue <- task:
		return true
	default:
		p.overflow.Add(1)
		return false
	}
}

// Overflow returns the number of Submit calls that found the queue full,
// for the metric spec §9's Open Question calls for.
func (p *Pool) Overflow() uint64 {
	return p.overflow.Load()
}

// Close stops accepting new tasks and waits for in-flight tasks to
// complete.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
	atomic.StoreUint64(&p.capacity, 0)
}

// Size returns the number of worker goroutines.
func (p *Pool) Size() uint64 {
	return atomic.LoadUint64(&p.capacity)
}
