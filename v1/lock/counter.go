package lock

import "sync/atomic"

// Counter counts lock misuses. One process-wide Counter is shared by
// every Lock by default; tests can isolate themselves by injecting a
// fresh one with WithErrorCounter.
type Counter struct {
	n atomic.Uint64
}

// NewCounter returns a fresh Counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Inc increments the counter.
func (c *Counter) Inc() {
	c.n.Add(1)
}

// Value returns the current count.
func (c *Counter) Value() uint64 {
	return c.n.Load()
}

// Reset sets the counter back to zero.
func (c *Counter) Reset() {
	c.n.Store(0)
}

// defaultCounter persists for the life of the process and is never
// reset automatically.
var defaultCounter = NewCounter()

// ErrorCount returns the process-wide misuse count, shared across all
// Lock instances that were not given a private counter.
func ErrorCount() uint64 {
	return defaultCounter.Value()
}
