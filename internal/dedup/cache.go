package dedup

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is how long a fingerprint suppresses repeats.
const DefaultWindow = 5 * time.Minute

// Cache is a process-local Deduplicator. Each entry expires window after it
// was first seen; expired entries are dropped lazily.
type Cache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	window  time.Duration
	now     func() time.Time

	sweepEvery int
	ops        int
}

// NewCache returns a cache with the given window. A nil clock uses time.Now.
func NewCache(window time.Duration, now func() time.Time) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries:    make(map[string]time.Time),
		window:     window,
		now:        now,
		sweepEvery: 64,
	}
}

func (c *Cache) Seen(_ context.Context, fingerprint string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.maybeSweep(now)

	if first, ok := c.entries[fingerprint]; ok {
		if now.Sub(first) < c.window {
			return true, nil
		}
	}
	c.entries[fingerprint] = now
	return false, nil
}

func (c *Cache) Forget(_ context.Context, fingerprint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fingerprint)
	return nil
}

// Len returns the number of tracked fingerprints, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) maybeSweep(now time.Time) {
	c.ops++
	if c.ops < c.sweepEvery {
		return
	}
	c.ops = 0
	for fp, first := range c.entries {
		if now.Sub(first) >= c.window {
			delete(c.entries, fp)
		}
	}
}
