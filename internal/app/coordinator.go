package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sitecheck/internal/config"
	"github.com/MrSnakeDoc/sitecheck/internal/coordinator"
	"github.com/MrSnakeDoc/sitecheck/internal/domain"
	"github.com/MrSnakeDoc/sitecheck/internal/httpserver"
	"github.com/MrSnakeDoc/sitecheck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
	"github.com/MrSnakeDoc/sitecheck/internal/notify"
	"github.com/MrSnakeDoc/sitecheck/internal/queue"
	"github.com/MrSnakeDoc/sitecheck/internal/scheduler"
	"github.com/MrSnakeDoc/sitecheck/internal/store/sqlite"
	"github.com/MrSnakeDoc/sitecheck/internal/utils"
	"github.com/MrSnakeDoc/sitecheck/internal/version"
)

// Coordinator serves the HTTP API and owns the result history.
type Coordinator struct {
	cfg      *config.Config
	logger   logger.Logger
	store    *sqlite.Store
	service  *coordinator.Service
	server   *httpserver.Server
	reloader *scheduler.TargetReloader
	gc       *scheduler.GarbageCollector

	mu          sync.Mutex
	redisClient *goredis.Client
}

func NewCoordinator() (*Coordinator, error) {
	cfg := config.Load()
	cfg.RequireCoordinator()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	store, err := sqlite.New(context.Background(), cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	loggerClient.Info("database opened", logger.String("path", cfg.DatabasePath))

	var notifier notify.Notifier = notify.NewLog(loggerClient)
	if cfg.DispatchServer != "" {
		notifier = notify.NewHTTP(cfg.DispatchServer, cfg.DispatchUser, cfg.DispatchPassword, cfg.DispatchTimeout)
	} else {
		loggerClient.Warn("dispatch server not configured, alerts are only logged")
	}

	service := coordinator.NewService(store, nil, notifier, coordinator.Options{
		Policy: domain.DuePolicy{
			BaseInterval:   cfg.BaseInterval,
			ExtendedWindow: cfg.ExtendedWindow,
		},
		PerfThreshold: cfg.PerfThreshold,
		DetailsLimit:  cfg.DetailsLimit,
	}, loggerClient)

	var reloadTrigger chan struct{}
	var reloader *scheduler.TargetReloader
	if cfg.TargetsFile != "" {
		reloadTrigger = make(chan struct{}, 1)
		reloader = scheduler.NewTargetReloader(cfg.TargetsFile, store, loggerClient, cfg.ReloadInterval, reloadTrigger)
	} else {
		loggerClient.Info("targets file not configured, target reloader disabled")
	}

	gc := scheduler.NewGarbageCollector(store, loggerClient, cfg.GCInterval, cfg.GCThreshold)

	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		AllowedCIDRS:  cfg.AllowedCIDRS,
		TrustProxy:    cfg.TrustProxy,
		Coordinator:   service,
		Store:         store,
		ReloadTrigger: reloadTrigger,
		SubmitBurst:   cfg.SubmitBurst,
		SubmitPerMin:  cfg.SubmitPerMin,
	}

	return &Coordinator{
		cfg:      cfg,
		logger:   loggerClient,
		store:    store,
		service:  service,
		server:   httpserver.New(cfg.ListenAddr, loggerClient, d),
		reloader: reloader,
		gc:       gc,
	}, nil
}

func (c *Coordinator) Run() error {
	c.logger.Infof("🚀 Starting sitecheck coordinator on %s", c.cfg.ListenAddr)
	logVersion(c.logger, "coordinator")

	ctx, stop := signalContext()
	defer stop()
	defer utils.Close(c.store)

	c.connectQueue(ctx)

	if c.reloader != nil {
		if err := c.reloader.Start(ctx); err != nil {
			return fmt.Errorf("failed to start target reloader: %w", err)
		}
		c.logger.Info("target reloader started", logger.Duration("interval", c.cfg.ReloadInterval))
	}

	if err := c.gc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start garbage collector: %w", err)
	}
	c.logger.Info("garbage collector started", logger.Duration("interval", c.cfg.GCInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := c.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		c.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	if c.reloader != nil {
		c.reloader.Stop()
	}
	c.gc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()
	if err := c.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	c.mu.Lock()
	closeRedis(c.redisClient, c.logger)
	c.mu.Unlock()

	c.logger.Info("✅ sitecheck coordinator stopped cleanly")
	return nil
}

// connectQueue tries the broker a bounded number of times. On failure the
// coordinator runs degraded and keeps retrying in the background.
func (c *Coordinator) connectQueue(ctx context.Context) {
	if c.attachQueue(ctx, c.cfg.QueueMaxAttempts) {
		return
	}
	c.logger.Warn("⚠️ queue unavailable, running degraded: schedule-check answers 503")

	go func() {
		if c.attachQueue(ctx, 0) {
			c.logger.Info("queue connected, leaving degraded mode")
		}
	}()
}

func (c *Coordinator) attachQueue(ctx context.Context, maxAttempts int) bool {
	client, err := connectRedis(ctx, c.cfg, maxAttempts, c.logger)
	if err != nil {
		c.logger.Error("failed to connect to redis", logger.Error(err))
		return false
	}

	stream, err := queue.NewRedisStream(ctx, client, queue.StreamOptions{
		Stream:   c.cfg.QueueName,
		Group:    c.cfg.QueueGroup,
		Consumer: "coordinator",
	}, c.logger)
	if err != nil {
		c.logger.Error("failed to open queue", logger.Error(err))
		_ = client.Close()
		return false
	}

	c.mu.Lock()
	c.redisClient = client
	c.mu.Unlock()
	c.service.SetQueue(stream)
	return true
}
