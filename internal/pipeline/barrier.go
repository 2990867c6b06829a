package pipeline

import (
	"sync"
	"sync/atomic"
)

// Barrier blocks until every registered worker has released its handle.
type Barrier struct {
	wg      sync.WaitGroup
	pending atomic.Int64
}

// Handle is held by one worker and released when it drains.
type Handle struct {
	b    *Barrier
	once sync.Once
}

// Register adds a worker to the barrier. Call it before the worker starts.
func (b *Barrier) Register() *Handle {
	b.wg.Add(1)
	b.pending.Add(1)
	return &Handle{b: b}
}

// Release marks the worker as done. Extra calls are no-ops.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.b.pending.Add(-1)
		h.b.wg.Done()
	})
}

// Wait blocks until every handle has been released. There is no timeout.
func (b *Barrier) Wait() {
	b.wg.Wait()
}

// Pending returns the number of handles not yet released.
func (b *Barrier) Pending() int {
	return int(b.pending.Load())
}
