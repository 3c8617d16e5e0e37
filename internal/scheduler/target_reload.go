package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/sitecheck/internal/logger"
	"github.com/MrSnakeDoc/sitecheck/internal/sources/targets"
	"github.com/MrSnakeDoc/sitecheck/internal/store/sqlite"
)

// TargetReloader keeps the targets table in line with the seed file.
type TargetReloader struct {
	loader        *targets.Loader
	mapper        *targets.Mapper
	store         *sqlite.Store
	logger        logger.Logger
	interval      time.Duration
	now           func() time.Time
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

func NewTargetReloader(
	targetsFile string,
	store *sqlite.Store,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *TargetReloader {
	return &TargetReloader{
		loader:        targets.NewLoader(targetsFile),
		mapper:        targets.NewMapper(),
		store:         store,
		logger:        log.With(logger.String("component", "target_reloader")),
		interval:      interval,
		now:           time.Now,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the file once, failing if it cannot, then reloads it
// periodically and on manual trigger.
func (tr *TargetReloader) Start(ctx context.Context) error {
	if err := tr.Reload(ctx); err != nil {
		return fmt.Errorf("initial reload failed: %w", err)
	}

	ticker := time.NewTicker(tr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := tr.Reload(ctx); err != nil {
					tr.logger.Error("failed to reload targets", logger.Error(err))
				}
			case <-tr.manualTrigger:
				tr.logger.Info("manual reload triggered")
				if err := tr.Reload(ctx); err != nil {
					tr.logger.Error("failed to reload targets", logger.Error(err))
				}
			case <-tr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (tr *TargetReloader) Stop() {
	close(tr.stopCh)
}

// Reload upserts every target in the file and soft-disables the ones that
// were removed from it. Existing tokens survive the upsert.
func (tr *TargetReloader) Reload(ctx context.Context) error {
	config, err := tr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load targets: %w", err)
	}

	mapped, skipped, err := tr.mapper.MapTargets(config)
	if err != nil {
		return fmt.Errorf("failed to map targets: %w", err)
	}
	for _, s := range skipped {
		tr.logger.Warn("skipping target entry",
			logger.Int("index", s.Index),
			logger.String("url", s.URL),
			logger.String("reason", s.Reason))
	}

	keep := make(map[string]bool, len(mapped))
	for _, t := range mapped {
		if err := tr.store.UpsertTarget(ctx, t); err != nil {
			return fmt.Errorf("failed to save target: %w", err)
		}
		keep[t.ID] = true
	}

	disabled, err := tr.store.DisableMissing(ctx, keep, tr.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to disable removed targets: %w", err)
	}
	if len(disabled) > 0 {
		tr.logger.Info("marked removed targets as disabled",
			logger.Int("count", len(disabled)))
	}

	tr.logger.Info("targets reloaded",
		logger.Int("count", len(mapped)),
		logger.Int("skipped", len(skipped)))
	return nil
}
