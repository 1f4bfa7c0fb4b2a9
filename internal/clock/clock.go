package clock

import (
	"sync"
	"time"
)

// Clock provides the current time so that code-window logic can be tested
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// FixedClock is a settable Clock for tests and tooling
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

var _ Clock = (*FixedClock)(nil)

// NewFixed creates a FixedClock set to t
func NewFixed(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

// Now returns the configured time
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

