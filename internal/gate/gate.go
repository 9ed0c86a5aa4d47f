// Package gate provides the counting admission-control primitive that bounds
// how many outbound model calls may be in flight process-wide.
package gate

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultCapacity bounds concurrent upstream calls when no explicit capacity
// is configured.
const DefaultCapacity = 4

// Gate is a counting semaphore shared by every session in the process.
// Acquire blocks until a slot is free; Release must be called exactly once
// per successful Acquire, on every exit path.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64
}

// New creates a Gate admitting at most capacity concurrent holders.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Gate {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Acquire blocks the calling goroutine until a slot is available or ctx is
// done. It returns ctx.Err() on cancellation; it cannot fail otherwise.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.inFlight.Add(1)
	return nil
}

// Release frees a slot previously obtained by a successful Acquire.
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// Capacity returns the configured admission limit.
func (g *Gate) Capacity() int {
	return int(g.capacity)
}

// InFlight returns the number of currently admitted holders.
func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}
