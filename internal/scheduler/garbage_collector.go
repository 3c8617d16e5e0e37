package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/sitecheck/internal/logger"
	"github.com/MrSnakeDoc/sitecheck/internal/store/sqlite"
)

const (
	// DefaultGCThreshold is how long a target stays disabled before it is deleted.
	DefaultGCThreshold = 30 * 24 * time.Hour // 30 days
)

// GarbageCollector deletes targets disabled for longer than the threshold,
// together with their result history.
type GarbageCollector struct {
	store     *sqlite.Store
	logger    logger.Logger
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
	stopCh    chan struct{}
}

func NewGarbageCollector(
	store *sqlite.Store,
	log logger.Logger,
	interval time.Duration,
	threshold time.Duration,
) *GarbageCollector {
	if threshold == 0 {
		threshold = DefaultGCThreshold
	}

	return &GarbageCollector{
		store:     store,
		logger:    log.With(logger.String("component", "garbage_collector")),
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start runs a collection right away, then every interval.
func (gc *GarbageCollector) Start(ctx context.Context) error {
	if _, err := gc.Collect(ctx); err != nil {
		gc.logger.Warn("initial garbage collection failed", logger.Error(err))
	}

	ticker := time.NewTicker(gc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := gc.Collect(ctx); err != nil {
					gc.logger.Error("garbage collection failed", logger.Error(err))
				}
			case <-gc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (gc *GarbageCollector) Stop() {
	close(gc.stopCh)
}

// Collect deletes expired targets and returns how many were removed.
// A failing delete is logged and does not stop the run.
func (gc *GarbageCollector) Collect(ctx context.Context) (int, error) {
	now := gc.now()

	expired, err := gc.store.DisabledBefore(ctx, now.Add(-gc.threshold))
	if err != nil {
		return 0, fmt.Errorf("failed to list disabled targets: %w", err)
	}

	deleted := 0
	for _, t := range expired {
		if err := gc.store.DeleteTarget(ctx, t.ID); err != nil && !errors.Is(err, sqlite.ErrNotFound) {
			gc.logger.Warn("failed to delete target",
				logger.String("target_id", t.ID),
				logger.Error(err))
			continue
		}

		gc.logger.Info("garbage collected disabled target",
			logger.String("target_id", t.ID),
			logger.String("url", t.BaseURL),
			logger.String("owner", t.Owner),
			logger.String("disabled_for", now.Sub(t.UpdatedAt).String()))
		deleted++
	}

	if deleted > 0 {
		gc.logger.Info("garbage collection completed", logger.Int("deleted", deleted))
	} else {
		gc.logger.Debug("no targets to garbage collect")
	}
	return deleted, nil
}
