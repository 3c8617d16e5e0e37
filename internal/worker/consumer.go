// Package worker consumes check tasks from the queue, runs them and submits
// the results to the coordinator.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrSnakeDoc/sitecheck/internal/checker"
	"github.com/MrSnakeDoc/sitecheck/internal/dedup"
	"github.com/MrSnakeDoc/sitecheck/internal/domain"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
	"github.com/MrSnakeDoc/sitecheck/internal/queue"
)

// PageChecker checks a single URL.
type PageChecker interface {
	Check(ctx context.Context, url string, opts checker.Options) (domain.PageReport, []byte)
}

// SiteCrawler checks every page of a site.
type SiteCrawler interface {
	Run(ctx context.Context, baseURL string, opts checker.Options) []domain.PageOutcome
}

// receiveBackoff is the pause after a failed receive.
const receiveBackoff = 2 * time.Second

// Consumer processes one task at a time. A delivery is acknowledged only
// after its results were accepted, or when it is dropped as malformed,
// duplicate or refused by the coordinator.
type Consumer struct {
	queue     queue.Queue
	dedup     dedup.Deduplicator
	engine    PageChecker
	crawler   SiteCrawler
	submitter Submitter
	logger    logger.Logger
}

func NewConsumer(q queue.Queue, d dedup.Deduplicator, engine PageChecker, crawler SiteCrawler, submitter Submitter, log logger.Logger) *Consumer {
	return &Consumer{
		queue:     q,
		dedup:     d,
		engine:    engine,
		crawler:   crawler,
		submitter: submitter,
		logger:    log,
	}
}

// Run consumes until ctx is canceled or the queue is closed.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		d, err := c.queue.Receive(ctx)
		switch {
		case err == nil:
			c.Handle(ctx, d)
		case errors.Is(err, queue.ErrEmpty):
		case ctx.Err() != nil, errors.Is(err, queue.ErrClosed):
			c.logger.Info("consumer stopped")
			return nil
		default:
			c.logger.Error("failed to receive task", logger.Error(err))
			select {
			case <-ctx.Done():
				c.logger.Info("consumer stopped")
				return nil
			case <-time.After(receiveBackoff):
			}
		}
	}
}

// Handle processes one delivery end to end.
func (c *Consumer) Handle(ctx context.Context, d *queue.Delivery) {
	log := c.logger.With(logger.String("delivery", d.ID))

	task, err := domain.DecodeTask(d.Payload)
	if err != nil {
		log.Warn("dropping malformed task", logger.Error(err))
		c.ack(ctx, d, log)
		return
	}
	log = log.With(logger.String("url", task.URL))

	var fingerprint string
	if !task.ForceRun {
		fingerprint, err = dedup.Fingerprint(task)
		if err != nil {
			log.Warn("cannot fingerprint task, processing without dedup", logger.Error(err))
		} else {
			seen, err := c.dedup.Seen(ctx, fingerprint)
			switch {
			case err != nil:
				log.Warn("dedup lookup failed, processing anyway", logger.Error(err))
				fingerprint = ""
			case seen:
				log.Debug("duplicate task dropped")
				c.ack(ctx, d, log)
				return
			}
		}
	}

	start := time.Now()
	opts := checker.OptionsFromTask(task)
	release := c.hold(ctx, d, log)
	defer release()

	var outcomes []domain.PageOutcome
	if task.Recursive {
		outcomes = c.crawler.Run(ctx, task.URL, opts)
	} else {
		report, _ := c.engine.Check(ctx, task.URL, opts)
		outcomes = []domain.PageOutcome{{URL: task.URL, Report: report}}
	}

	if ctx.Err() != nil {
		log.Info("task interrupted by shutdown, left for redelivery")
		c.forget(fingerprint, log)
		return
	}

	sub := domain.Submission{URL: task.URL, Token: task.Token, Checks: outcomes}
	err = c.submitter.Submit(ctx, sub)
	release()
	switch {
	case errors.Is(err, ErrRejected):
		log.Error("coordinator refused results, task dropped", logger.Error(err))
		c.ack(ctx, d, log)
		return
	case err != nil:
		log.Error("failed to submit results, task left for redelivery", logger.Error(err))
		c.forget(fingerprint, log)
		return
	}

	c.ack(ctx, d, log)
	log.Info("task done",
		logger.Int("pages", len(outcomes)),
		logger.Bool("recursive", task.Recursive),
		logger.Bool("forced", task.ForceRun),
		logger.Duration("took", time.Since(start)))
}

// hold keeps d claimed by this consumer while it is being processed, for
// queues that hand idle deliveries to other consumers. The returned func
// stops it and may be called more than once.
func (c *Consumer) hold(ctx context.Context, d *queue.Delivery, log logger.Logger) func() {
	ext, ok := c.queue.(queue.Extender)
	if !ok || ext.ExtendEvery() <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(ext.ExtendEvery())
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ext.Extend(ctx, d); err != nil {
					log.Warn("failed to extend task claim", logger.Error(err))
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-stopped
		})
	}
}

func (c *Consumer) ack(ctx context.Context, d *queue.Delivery, log logger.Logger) {
	if err := c.queue.Ack(ctx, d); err != nil {
		log.Error("failed to ack task", logger.Error(err))
	}
}

func (c *Consumer) forget(fingerprint string, log logger.Logger) {
	if fingerprint == "" {
		return
	}
	// ctx may already be canceled; the fingerprint must still go.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.dedup.Forget(ctx, fingerprint); err != nil {
		log.Warn("failed to forget fingerprint", logger.Error(err))
	}
}
