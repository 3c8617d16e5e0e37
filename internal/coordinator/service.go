// Package coordinator holds the server side of the pipeline: which targets
// are due, turning dispatch requests into queue tasks, and correlating
// submitted results with history to raise alerts.
package coordinator

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
	"github.com/MrSnakeDoc/sitecheck/internal/notify"
	"github.com/MrSnakeDoc/sitecheck/internal/queue"
	"github.com/MrSnakeDoc/sitecheck/internal/store/sqlite"
)

var (
	ErrNotFound         = errors.New("target not found")
	ErrUnauthorized     = errors.New("invalid submission token")
	ErrQueueUnavailable = errors.New("queue unavailable")
)

// DefaultDetailsLimit is the number of results returned by Details when none is configured.
const DefaultDetailsLimit = 50

type Options struct {
	Policy        domain.DuePolicy
	PerfThreshold float64
	DetailsLimit  int
	Now           func() time.Time
}

type Service struct {
	store    *sqlite.Store
	notifier notify.Notifier
	logger   logger.Logger
	opts     Options

	mu    sync.RWMutex
	queue queue.Queue
}

// NewService wires the coordinator. q may be nil while the broker is
// unreachable; Schedule then answers ErrQueueUnavailable until SetQueue.
func NewService(store *sqlite.Store, q queue.Queue, notifier notify.Notifier, opts Options, log logger.Logger) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PerfThreshold <= 0 {
		opts.PerfThreshold = domain.DefaultPerformanceThreshold
	}
	if opts.DetailsLimit <= 0 {
		opts.DetailsLimit = DefaultDetailsLimit
	}
	if notifier == nil {
		notifier = notify.NewLog(log)
	}
	return &Service{
		store:    store,
		queue:    q,
		notifier: notifier,
		logger:   log.With(logger.String("component", "coordinator")),
		opts:     opts,
	}
}

func (s *Service) SetQueue(q queue.Queue) {
	s.mu.Lock()
	s.queue = q
	s.mu.Unlock()
}

// Queue returns the current queue, nil when running degraded.
func (s *Service) Queue() queue.Queue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue
}

// DueSet returns the targets owed a check right now.
func (s *Service) DueSet(ctx context.Context) ([]domain.Target, error) {
	activity, err := s.store.ListTargetActivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load target activity: %w", err)
	}
	return s.opts.Policy.DueSet(activity, s.opts.Now()), nil
}

// Schedule publishes one task per enabled target registered for baseURL.
// With an owner only that owner's target is dispatched. It returns the number
// of published tasks.
func (s *Service) Schedule(ctx context.Context, baseURL string, o domain.Overrides) (int, error) {
	q := s.Queue()
	if q == nil {
		return 0, ErrQueueUnavailable
	}

	targets, err := s.scheduleTargets(ctx, baseURL, o.Owner)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, t := range targets {
		task := o.Apply(domain.NewTask(t))
		payload, err := json.Marshal(task)
		if err != nil {
			return published, fmt.Errorf("failed to encode task for %s: %w", t.BaseURL, err)
		}
		if err := q.Publish(ctx, payload); err != nil {
			return published, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}
		published++
		s.logger.Debug("task scheduled",
			logger.String("url", t.BaseURL),
			logger.String("owner", t.Owner),
			logger.Bool("force_run", task.ForceRun))
	}
	return published, nil
}

func (s *Service) scheduleTargets(ctx context.Context, baseURL, owner string) ([]domain.Target, error) {
	if owner != "" {
		t, err := s.store.TargetByOwnerURL(ctx, owner, baseURL)
		if errors.Is(err, sqlite.ErrNotFound) || (err == nil && t.Disabled) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up target: %w", err)
		}
		return []domain.Target{*t}, nil
	}

	all, err := s.store.TargetsByURL(ctx, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to look up targets: %w", err)
	}
	enabled := all[:0]
	for _, t := range all {
		if !t.Disabled {
			enabled = append(enabled, t)
		}
	}
	if len(enabled) == 0 {
		return nil, ErrNotFound
	}
	return enabled, nil
}

// Submit correlates a worker submission with history. Every checked URL
// becomes one result row; a row whose pass flag differs from the previous
// row for the same URL (or a first row that fails) raises an alert to the
// target owner. Alerts go out after the rows are committed.
func (s *Service) Submit(ctx context.Context, sub domain.Submission) error {
	target, err := s.authorize(ctx, sub)
	if err != nil {
		return err
	}

	now := s.opts.Now().UTC()
	results := make([]domain.CheckResult, 0, len(sub.Checks))
	for _, c := range sub.Checks {
		results = append(results, domain.NewCheckResult(uuid.NewString(), target.ID, c.URL, c.Report, now, s.opts.PerfThreshold))
	}

	recorded, err := s.store.RecordResults(ctx, results)
	if err != nil {
		return fmt.Errorf("failed to record results: %w", err)
	}

	failed := 0
	for _, r := range recorded {
		if !r.Result.BaseCheck {
			failed++
		}
		transition := domain.DetectTransition(r.Previous, r.Result)
		alert := domain.NewAlert(transition, target.Owner, r.Result)
		if alert == nil {
			continue
		}
		if err := s.notifier.Notify(ctx, *alert); err != nil {
			s.logger.Error("failed to dispatch alert",
				logger.String("url", r.Result.URL),
				logger.String("transition", transition.String()),
				logger.Error(err))
			continue
		}
		s.logger.Info("alert dispatched",
			logger.String("url", r.Result.URL),
			logger.String("owner", target.Owner),
			logger.String("transition", transition.String()))
	}

	s.logger.Info("results recorded",
		logger.String("url", sub.URL),
		logger.Int("pages", len(recorded)),
		logger.Int("failed", failed))
	return nil
}

func (s *Service) authorize(ctx context.Context, sub domain.Submission) (*domain.Target, error) {
	targets, err := s.store.TargetsByURL(ctx, sub.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to look up targets: %w", err)
	}
	if len(targets) == 0 {
		return nil, ErrNotFound
	}
	if sub.Token == "" {
		return nil, ErrUnauthorized
	}
	for i := range targets {
		if subtle.ConstantTimeCompare([]byte(targets[i].Token), []byte(sub.Token)) == 1 {
			return &targets[i], nil
		}
	}
	return nil, ErrUnauthorized
}

// Details is the check history view of one target.
type Details struct {
	Target  domain.Target        `json:"target"`
	Status  string               `json:"status"`
	Results []domain.CheckResult `json:"results"`
}

// Details returns a target with its latest results, newest first.
func (s *Service) Details(ctx context.Context, baseURL, owner string) (*Details, error) {
	var target *domain.Target
	if owner != "" {
		t, err := s.store.TargetByOwnerURL(ctx, owner, baseURL)
		if errors.Is(err, sqlite.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up target: %w", err)
		}
		target = t
	} else {
		all, err := s.store.TargetsByURL(ctx, baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to look up targets: %w", err)
		}
		if len(all) == 0 {
			return nil, ErrNotFound
		}
		target = &all[0]
	}

	results, err := s.store.LatestResults(ctx, target.ID, s.opts.DetailsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	var latest *domain.CheckResult
	for i := range results {
		if results[i].URL == target.BaseURL {
			latest = &results[i]
			break
		}
	}

	return &Details{Target: *target, Status: domain.Status(latest), Results: results}, nil
}
