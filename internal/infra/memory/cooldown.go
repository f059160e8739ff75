package memory

import (
	"context"
	"sync"
	"time"
)

// Cooldown is an in-process fixed-window limiter: one hit per key per window,
// measured from the last allowed hit. Expired keys are pruned lazily.
type Cooldown struct {
	window time.Duration
	clock  func() time.Time

	mu        sync.Mutex
	last      map[string]time.Time
	lastSweep time.Time
}

func NewCooldown(window time.Duration) *Cooldown {
	return NewCooldownWithClock(window, time.Now)
}

// NewCooldownWithClock allows deterministic windows in tests.
func NewCooldownWithClock(window time.Duration, clock func() time.Time) *Cooldown {
	return &Cooldown{
		window: window,
		clock:  clock,
		last:   make(map[string]time.Time),
	}
}

func (c *Cooldown) Hit(_ context.Context, key string) (time.Time, bool, error) {
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) >= c.window {
		c.sweepLocked(now)
	}
	if at, ok := c.last[key]; ok {
		if retryAt := at.Add(c.window); now.Before(retryAt) {
			return retryAt, false, nil
		}
	}
	c.last[key] = now
	return time.Time{}, true, nil
}

// Len reports how many keys are tracked.
func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.last)
}

func (c *Cooldown) sweepLocked(now time.Time) {
	for key, at := range c.last {
		if !now.Before(at.Add(c.window)) {
			delete(c.last, key)
		}
	}
	c.lastSweep = now
}
