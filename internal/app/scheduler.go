package app

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/MrSnakeDoc/sitecheck/internal/config"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
	"github.com/MrSnakeDoc/sitecheck/internal/scheduler"
)

// Scheduler periodically dispatches the due targets. SIGHUP starts a cycle immediately.
type Scheduler struct {
	cfg        *config.Config
	logger     logger.Logger
	dispatcher *scheduler.Dispatcher
}

func NewScheduler() *Scheduler {
	cfg := config.Load()
	cfg.RequireScheduler()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	return &Scheduler{
		cfg:        cfg,
		logger:     loggerClient,
		dispatcher: scheduler.NewDispatcher(cfg.CoordinatorURL, cfg.SchedulerInterval, cfg.SubmitTimeout, loggerClient),
	}
}

func (s *Scheduler) Run() error {
	s.logger.Infof("🚀 Starting sitecheck scheduler against %s", s.cfg.CoordinatorURL)
	logVersion(s.logger, "scheduler")

	ctx, stop := signalContext()
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	s.dispatcher.Start(ctx)
	s.logger.Info("dispatcher started", logger.Duration("interval", s.cfg.SchedulerInterval))

	for {
		select {
		case <-hup:
			if !s.dispatcher.Trigger() {
				s.logger.Warn("dispatch already pending")
			}
		case <-ctx.Done():
			s.logger.Info("⏳ Shutting down gracefully...")
			s.dispatcher.Stop()
			s.logger.Info("✅ sitecheck scheduler stopped cleanly")
			return nil
		}
	}
}
