package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the first instant returned by a SteppingClock created
// with a zero start.
var DefaultEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// SteppingClock is a deterministic wall clock for tests and scenario runs.
//
// Every call to Now returns the previous instant plus the step, so audit
// stamps are distinct, ordered and identical across runs. A zero step
// freezes the clock.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SteppingClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	ticks int64
}

// NewSteppingClock creates a clock whose first reading is start.
func NewSteppingClock(start time.Time, step time.Duration) *SteppingClock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	return &SteppingClock{start: start.UTC(), step: step}
}

// Now returns the next instant. Implements engine.Clock.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.ticks) * c.step)
	c.ticks++
	return t
}

// Ticks returns how many times Now has been called.
func (c *SteppingClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock. The next call to Now returns start again.
func (c *SteppingClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
