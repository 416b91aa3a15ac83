// Package clock provides the timestamp sources consumed by MODIFY's
// last-writer-wins rule. Spec §9 notes the reference implementation
// "contains a partial Clock abstraction" (distributed_memory/clock.py) and
// says replacing wall-clock with a Lamport clock is an acceptable,
// arguably superior, upgrade provided last-writer-wins still holds across
// a single Director. Both are implemented here; the Shard side only ever
// compares opaque, monotonically-comparable int64 ticks, so the choice of
// clock never touches internal/store.
package clock

import (
	"sync"
	"time"
)

// Clock produces monotonically comparable timestamps for MODIFY requests.
type Clock interface {
	Now() int64
}

// WallClock samples the system clock. It is the default, matching spec.md
// §4.2 literally ("ts is a monotonic wall-clock value sampled at the
// Director just before send").
type WallClock struct{}

// Now returns the current time as nanoseconds since the Unix epoch.
func (WallClock) Now() int64 { return time.Now().UnixNano() }

// LamportClock implements a classic Lamport logical clock: every local
// event advances the counter, and observing a remote timestamp folds it in
// via the standard max-then-increment rule. Grounded on
// distributed_memory/clock.py's is_in_past/update_clock pair.
type LamportClock struct {
	mu      sync.Mutex
	counter int64
}

// NewLamportClock returns a LamportClock starting at tick 0.
func NewLamportClock() *LamportClock {
	return &LamportClock{}
}

// Now advances and returns the local tick. Call this immediately before
// sending a MODIFY, mirroring WallClock.Now's call site.
func (c *LamportClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	return c.counter
}

// Observe folds a remote timestamp into the local clock, advancing it past
// the observed value. The Director has no peers to observe from in this
// system (only Shards reply to it, and replies carry no new timestamp), so
// this exists for completeness and for Shard-side Lamport deployments that
// choose to track the Director's clock explicitly.
func (c *LamportClock) Observe(remote int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remote > c.counter {
		c.counter = remote
	}
	c.counter++
}
