package actions

import (
	"sync"
	"time"
)

// Cooldown suppresses repeats of the same action against the same target
// within a time window.
type Cooldown struct {
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
	mu     sync.Mutex
}

func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// Active reports whether key is still inside its window. A nil Cooldown or
// a zero window is never active.
func (c *Cooldown) Active(key string) bool {
	if c == nil || c.window <= 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.seen[key]
	return ok && c.now().Sub(last) < c.window
}

// Start begins the window for key.
func (c *Cooldown) Start(key string) {
	if c == nil || c.window <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.seen[key] = now
	c.cleanup(now)
}

// cleanup removes expired entries. Caller holds mu.
func (c *Cooldown) cleanup(now time.Time) {
	cutoff := now.Add(-c.window)
	for key, ts := range c.seen {
		if ts.Before(cutoff) {
			delete(c.seen, key)
		}
	}
}
