package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sitecheck/internal/logger"
)

const payloadField = "payload"

// StreamOptions configures a RedisStream.
type StreamOptions struct {
	Stream    string        // stream key (ex: "scheduled")
	Group     string        // consumer group shared by all workers
	Consumer  string        // name of this consumer inside the group
	Block     time.Duration // how long Receive waits for a new entry
	ClaimIdle time.Duration // pending entries idle longer than this are reclaimed
}

// RedisStream is a Queue on top of a Redis stream and consumer group.
// The client is owned by the caller; Close does not close it.
type RedisStream struct {
	client *redis.Client
	opts   StreamOptions
	logger logger.Logger
}

// NewRedisStream creates the stream and group when missing.
func NewRedisStream(ctx context.Context, client *redis.Client, opts StreamOptions, log logger.Logger) (*RedisStream, error) {
	if opts.Stream == "" || opts.Group == "" {
		return nil, fmt.Errorf("stream and group names are required")
	}
	q := &RedisStream{client: client, opts: opts, logger: log}
	if err := q.ensureGroup(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *RedisStream) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.opts.Stream, q.opts.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s on %s: %w", q.opts.Group, q.opts.Stream, err)
	}
	return nil
}

func (q *RedisStream) Publish(ctx context.Context, payload []byte) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.opts.Stream,
		Values: map[string]interface{}{payloadField: string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish task: %w", err)
	}
	return nil
}

// Receive first reclaims an entry another consumer left pending for longer
// than ClaimIdle, then waits for a new one.
func (q *RedisStream) Receive(ctx context.Context) (*Delivery, error) {
	if q.opts.ClaimIdle > 0 {
		msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.opts.Stream,
			Group:    q.opts.Group,
			Consumer: q.opts.Consumer,
			MinIdle:  q.opts.ClaimIdle,
			Start:    "0-0",
			Count:    1,
		}).Result()
		switch {
		case err != nil && !errors.Is(err, redis.Nil):
			if q.recoverGroup(ctx, err) {
				return nil, ErrEmpty
			}
			return nil, fmt.Errorf("failed to reclaim pending tasks: %w", err)
		case len(msgs) > 0:
			q.logger.Info("reclaimed unacknowledged task", logger.String("id", msgs[0].ID))
			return toDelivery(msgs[0], true), nil
		}
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.opts.Group,
		Consumer: q.opts.Consumer,
		Streams:  []string{q.opts.Stream, ">"},
		Count:    1,
		Block:    q.opts.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if q.recoverGroup(ctx, err) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}

	for _, s := range streams {
		if len(s.Messages) > 0 {
			return toDelivery(s.Messages[0], false), nil
		}
	}
	return nil, ErrEmpty
}

// recoverGroup recreates the group when the stream was deleted under us.
func (q *RedisStream) recoverGroup(ctx context.Context, err error) bool {
	if !strings.Contains(err.Error(), "NOGROUP") {
		return false
	}
	q.logger.Warn("consumer group missing, recreating",
		logger.String("stream", q.opts.Stream),
		logger.String("group", q.opts.Group))
	if cerr := q.ensureGroup(ctx); cerr != nil {
		q.logger.Error("failed to recreate consumer group", logger.Error(cerr))
	}
	return true
}

func (q *RedisStream) Ack(ctx context.Context, d *Delivery) error {
	if err := q.client.XAck(ctx, q.opts.Stream, q.opts.Group, d.ID).Err(); err != nil {
		return fmt.Errorf("failed to ack task %s: %w", d.ID, err)
	}
	return nil
}

// ExtendEvery is a third of ClaimIdle, so a slow Redis round trip still
// lands before another consumer may reclaim the entry.
func (q *RedisStream) ExtendEvery() time.Duration {
	return q.opts.ClaimIdle / 3
}

// Extend resets the idle time of d by claiming it again for this consumer.
func (q *RedisStream) Extend(ctx context.Context, d *Delivery) error {
	err := q.client.XClaimJustID(ctx, &redis.XClaimArgs{
		Stream:   q.opts.Stream,
		Group:    q.opts.Group,
		Consumer: q.opts.Consumer,
		Messages: []string{d.ID},
	}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to extend task %s: %w", d.ID, err)
	}
	return nil
}

func (q *RedisStream) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisStream) Close() error { return nil }

func toDelivery(msg redis.XMessage, redelivered bool) *Delivery {
	d := &Delivery{ID: msg.ID, Redelivered: redelivered}
	switch v := msg.Values[payloadField].(type) {
	case string:
		d.Payload = []byte(v)
	case []byte:
		d.Payload = v
	}
	return d
}
