// Package fake provides a deterministic clock for tests.
package fake

import (
	"sync"
	"time"
)

// Clock returns start, then advances by step on every call.
type Clock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// New returns a Clock starting at start.
func New(start time.Time, step time.Duration) *Clock {
	return &Clock{next: start, step: step}
}

// Now returns the next tick.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}
