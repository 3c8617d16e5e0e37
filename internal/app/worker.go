package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sitecheck/internal/checker"
	"github.com/MrSnakeDoc/sitecheck/internal/config"
	"github.com/MrSnakeDoc/sitecheck/internal/dedup"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
	"github.com/MrSnakeDoc/sitecheck/internal/perf"
	"github.com/MrSnakeDoc/sitecheck/internal/queue"
	"github.com/MrSnakeDoc/sitecheck/internal/spelling"
	"github.com/MrSnakeDoc/sitecheck/internal/worker"
)

// Worker consumes check tasks and submits the results.
type Worker struct {
	cfg     *config.Config
	logger  logger.Logger
	engine  *checker.Engine
	crawler *checker.Recursive
}

func NewWorker() (*Worker, error) {
	cfg := config.Load()
	cfg.RequireWorker()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	index, err := spelling.NewIndex(cfg.SpellingDictionary, cfg.SpellingMaxDistance)
	if err != nil {
		return nil, fmt.Errorf("failed to load spelling dictionary: %w", err)
	}
	loggerClient.Info("spelling dictionary loaded", logger.Int("words", index.Len()))

	if cfg.PerfAPIKey == "" {
		loggerClient.Warn("performance API key not set, requests are subject to anonymous quotas")
	}
	if cfg.MaxPages <= 0 {
		loggerClient.Warn("recursive crawls are unbounded, set SITECHECK_MAX_PAGES to cap them")
	}

	fetcher := checker.NewFetcher(checker.FetchOptions{
		Timeout:      cfg.FetchTimeout,
		MaxBodyBytes: cfg.MaxBodyBytes,
		MaxRedirects: cfg.MaxRedirects,
		UserAgent:    cfg.UserAgent,
	})
	crawler := checker.NewCrawler(fetcher, cfg.PolitenessDelay, loggerClient)
	scorer := perf.NewPageSpeed(cfg.PerfEndpoint, cfg.PerfAPIKey, cfg.PerfTimeout)
	engine := checker.NewEngine(fetcher, crawler, scorer, spelling.NewChecker(index), loggerClient)

	return &Worker{
		cfg:     cfg,
		logger:  loggerClient,
		engine:  engine,
		crawler: checker.NewRecursive(engine, cfg.MaxPages, loggerClient),
	}, nil
}

func (w *Worker) Run() error {
	w.logger.Infof("🚀 Starting sitecheck worker %s", w.cfg.QueueConsumer)
	logVersion(w.logger, "worker")

	ctx, stop := signalContext()
	defer stop()

	client, err := connectRedis(ctx, w.cfg, 0, w.logger)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer closeRedis(client, w.logger)

	stream, err := queue.NewRedisStream(ctx, client, queue.StreamOptions{
		Stream:    w.cfg.QueueName,
		Group:     w.cfg.QueueGroup,
		Consumer:  w.cfg.QueueConsumer,
		Block:     w.cfg.QueueBlock,
		ClaimIdle: w.cfg.QueueClaimIdle,
	}, w.logger)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}

	consumer := worker.NewConsumer(
		stream,
		w.deduplicator(client),
		w.engine,
		w.crawler,
		worker.NewHTTPSubmitter(w.cfg.CoordinatorURL, w.cfg.SubmitTimeout),
		w.logger,
	)

	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("consumer stopped: %w", err)
	}

	w.logger.Info("✅ sitecheck worker stopped cleanly")
	return nil
}

func (w *Worker) deduplicator(client *goredis.Client) dedup.Deduplicator {
	if w.cfg.DedupShared {
		w.logger.Info("duplicate window shared through redis", logger.Duration("window", w.cfg.DedupWindow))
		return dedup.NewRedisCache(client, w.cfg.DedupWindow)
	}
	return dedup.NewCache(w.cfg.DedupWindow, nil)
}

var (
	_ worker.PageChecker = (*checker.Engine)(nil)
	_ worker.SiteCrawler = (*checker.Recursive)(nil)
	_ queue.Extender     = (*queue.RedisStream)(nil)
)
