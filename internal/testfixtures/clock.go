package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manually driven time source shared by services, stores and the
// reminder evaluator under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start}
}

// Now reports the clock's instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc returns Now for injection; a nil clock falls back to time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Step advances the clock by step n times and calls fn after each move, the
// way the minute cron drives reminder evaluation.
func (c *Clock) Step(step time.Duration, n int, fn func(now time.Time)) {
	for i := 0; i < n; i++ {
		fn(c.Advance(step))
	}
}

// In reports the clock's instant in loc.
func (c *Clock) In(loc *time.Location) time.Time {
	return c.Now().In(loc)
}
