package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCacheWindow(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCache(5*time.Minute, clock.now)

	if seen, _ := c.Seen(ctx, "fp"); seen {
		t.Fatal("first Seen() = true")
	}

	clock.advance(4 * time.Minute)
	if seen, _ := c.Seen(ctx, "fp"); !seen {
		t.Fatal("repeat inside window not suppressed")
	}

	// The window runs from the first sighting, so a repeat does not extend it.
	clock.advance(90 * time.Second)
	if seen, _ := c.Seen(ctx, "fp"); seen {
		t.Fatal("repeat after window still suppressed")
	}
}

func TestCacheForget(t *testing.T) {
	ctx := context.Background()
	c := NewCache(time.Minute, nil)

	_, _ = c.Seen(ctx, "fp")
	if err := c.Forget(ctx, "fp"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	if seen, _ := c.Seen(ctx, "fp"); seen {
		t.Error("forgotten fingerprint still suppressed")
	}
}

func TestCacheSweep(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	c := NewCache(time.Minute, clock.now)
	c.sweepEvery = 2

	_, _ = c.Seen(ctx, "old")
	clock.advance(2 * time.Minute)
	_, _ = c.Seen(ctx, "new")

	if c.Len() != 1 {
		t.Errorf("Len() = %d after sweep, want 1", c.Len())
	}
}

func TestFingerprint(t *testing.T) {
	base := domain.CheckTask{URL: "https://a.example/", Token: "t", CheckLinks: true}

	fp1, err := Fingerprint(base)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}

	forced := base
	forced.ForceRun = true
	fp2, _ := Fingerprint(forced)
	if fp1 != fp2 {
		t.Error("force flag changed the fingerprint")
	}

	other := base
	other.CheckSpelling = true
	fp3, _ := Fingerprint(other)
	if fp1 == fp3 {
		t.Error("different flags share a fingerprint")
	}

	if len(fp1) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(fp1))
	}
}
