package testutils

import (
	"sync"
	"time"
)

// FakeClock is a manually advanced uptime source
type FakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func NewFakeClock(start time.Duration) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Uptime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward and returns the new uptime
func (c *FakeClock) Advance(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}

// Set jumps to an absolute uptime
func (c *FakeClock) Set(now time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
