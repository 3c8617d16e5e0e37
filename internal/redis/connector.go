package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sitecheck/internal/logger"
)

// ConnectOptions defines Redis connection and retry behavior.
type ConnectOptions struct {
	Addr         string        // Redis address (ex: "localhost:6379")
	User         string        // Optional username
	Password     string        // Optional password
	RedisDB      int           // Redis DB number
	DialTimeout  time.Duration // Redis dial timeout
	ReadTimeout  time.Duration // Redis read timeout, must exceed any blocking read
	WriteTimeout time.Duration // Redis write timeout
	PoolSize     int           // Redis connection pool size
	PingTimeout  time.Duration // timeout for each ping attempt (ex: 5s)
	MaxAttempts  int           // 0 retries forever
	RetryStep    time.Duration // attempt i waits i*RetryStep before the next one
}

// connectionLogger handles all Redis connection logging.
type connectionLogger struct {
	logger logger.Logger
}

func (cl *connectionLogger) logConnectionStart(addr string, maxAttempts int) {
	cl.logger.Info("connecting to redis",
		logger.String("addr", addr),
		logger.Int("max_attempts", maxAttempts))
}

func (cl *connectionLogger) logSuccess(addr string, attempts int) {
	if attempts > 1 {
		cl.logger.Warn("connected to redis after retry",
			logger.String("addr", addr),
			logger.Int("attempts", attempts))
		return
	}
	cl.logger.Info("connected to redis", logger.String("addr", addr))
}

func (cl *connectionLogger) logGiveUp(addr string, attempts int, err error) {
	cl.logger.Error("redis unavailable - giving up",
		logger.String("addr", addr),
		logger.Int("attempts", attempts),
		logger.Error(err))
}

func (cl *connectionLogger) logRetry(addr string, attempt int, next time.Duration, err error) {
	cl.logger.Warn("redis connection failed, retrying",
		logger.String("addr", addr),
		logger.Int("attempt", attempt),
		logger.Duration("next_retry_in", next),
		logger.Error(err))
}

func (cl *connectionLogger) validateOptions(opts ConnectOptions) error {
	if opts.Addr == "" {
		return fmt.Errorf("redis address is required")
	}
	if opts.PingTimeout <= 0 {
		cl.logger.Error("invalid PingTimeout", logger.Duration("value", opts.PingTimeout))
		return fmt.Errorf("PingTimeout must be > 0, got %v", opts.PingTimeout)
	}
	if opts.RetryStep <= 0 {
		cl.logger.Error("invalid RetryStep", logger.Duration("value", opts.RetryStep))
		return fmt.Errorf("RetryStep must be > 0, got %v", opts.RetryStep)
	}
	if opts.MaxAttempts < 0 {
		cl.logger.Error("invalid MaxAttempts", logger.Int("value", opts.MaxAttempts))
		return fmt.Errorf("MaxAttempts must be >= 0, got %d", opts.MaxAttempts)
	}
	return nil
}

// Connect creates a Redis client and pings it until it answers. Attempt i is
// followed by a pause of i*RetryStep. With MaxAttempts > 0 the client is
// closed and an error returned once the attempts are used up.
func Connect(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	connLogger := &connectionLogger{logger: log}
	if err := connLogger.validateOptions(opts); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.User,
		Password:     opts.Password,
		DB:           opts.RedisDB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	if err := connectWithRetry(ctx, client, opts, connLogger); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func connectWithRetry(ctx context.Context, client *redis.Client, opts ConnectOptions, log *connectionLogger) error {
	log.logConnectionStart(opts.Addr, opts.MaxAttempts)

	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()

		if err == nil {
			log.logSuccess(opts.Addr, attempt)
			return nil
		}

		if opts.MaxAttempts > 0 && attempt >= opts.MaxAttempts {
			log.logGiveUp(opts.Addr, attempt, err)
			return fmt.Errorf("redis unavailable at %s after %d attempts: %w", opts.Addr, attempt, err)
		}

		wait := Backoff(attempt, opts.RetryStep)
		log.logRetry(opts.Addr, attempt, wait, err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis connection to %s canceled: %w", opts.Addr, ctx.Err())
		case <-timer.C:
		}
	}
}

// Backoff is the linear pause after the given (1-based) attempt.
func Backoff(attempt int, step time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * step
}
