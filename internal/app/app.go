// Package app assembles the coordinator, worker and scheduler processes.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sitecheck/internal/config"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
	"github.com/MrSnakeDoc/sitecheck/internal/redis"
	"github.com/MrSnakeDoc/sitecheck/internal/version"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func logVersion(log logger.Logger, role string) {
	log.Infof("sitecheck %s %s", role, version.String())
}

func connectRedis(ctx context.Context, cfg *config.Config, maxAttempts int, log logger.Logger) (*goredis.Client, error) {
	return redis.Connect(ctx, redis.ConnectOptions{
		Addr:         cfg.RedisAddr,
		User:         cfg.RedisUser,
		Password:     cfg.RedisPassword,
		RedisDB:      cfg.RedisDB,
		DialTimeout:  cfg.RedisDT,
		ReadTimeout:  cfg.RedisRT,
		WriteTimeout: cfg.RedisWT,
		PoolSize:     cfg.RedisPoolSize,
		PingTimeout:  cfg.RedisPingTimeout,
		MaxAttempts:  maxAttempts,
		RetryStep:    cfg.QueueRetryStep,
	}, log)
}

func closeRedis(client *goredis.Client, log logger.Logger) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		log.Warnf("failed to close redis: %v", err)
		return
	}
	log.Info("✅ Redis closed cleanly")
}
