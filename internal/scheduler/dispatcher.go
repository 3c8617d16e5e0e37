package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
)

// DefaultDispatchInterval is the pause between two dispatch cycles.
const DefaultDispatchInterval = 5 * time.Minute

// Dispatcher asks the coordinator which targets are due and schedules one
// check per due target.
type Dispatcher struct {
	client         *http.Client
	coordinatorURL string
	interval       time.Duration
	logger         logger.Logger
	trigger        chan struct{}
	stopCh         chan struct{}
	stopOnce       sync.Once
	done           chan struct{}
}

func NewDispatcher(coordinatorURL string, interval, timeout time.Duration, log logger.Logger) *Dispatcher {
	if interval <= 0 {
		interval = DefaultDispatchInterval
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		client:         &http.Client{Timeout: timeout},
		coordinatorURL: strings.TrimSuffix(coordinatorURL, "/"),
		interval:       interval,
		logger:         log.With(logger.String("component", "dispatcher")),
		trigger:        make(chan struct{}, 1),
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start runs a cycle right away and then one every interval until ctx is
// done or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.done)

		timer := time.NewTimer(0)
		defer timer.Stop()

		for {
			select {
			case <-timer.C:
			case <-d.trigger:
				d.logger.Info("manual dispatch triggered")
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			case <-d.stopCh:
				return
			case <-ctx.Done():
				return
			}

			d.cycle(ctx)
			timer.Reset(d.interval)
		}
	}()
}

// Trigger requests an immediate cycle. It reports false when one is already pending.
func (d *Dispatcher) Trigger() bool {
	select {
	case d.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop ends the loop and waits for the running cycle to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	<-d.done
}

func (d *Dispatcher) cycle(ctx context.Context) {
	start := time.Now()
	dispatched, failed, err := d.RunCycle(ctx)
	if err != nil {
		d.logger.Error("dispatch cycle failed", logger.Error(err))
		return
	}
	d.logger.Info("dispatch cycle completed",
		logger.Int("dispatched", dispatched),
		logger.Int("failed", failed),
		logger.Duration("duration", time.Since(start)))
}

// RunCycle fetches the due set and schedules every entry in order. A failed
// schedule is logged and counted; only a failed due-set query is an error.
func (d *Dispatcher) RunCycle(ctx context.Context) (dispatched, failed int, err error) {
	due, err := d.fetchDue(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, t := range due {
		if ctx.Err() != nil {
			break
		}
		if err := d.schedule(ctx, t); err != nil {
			failed++
			d.logger.Warn("failed to schedule check",
				logger.String("url", t.BaseURL),
				logger.String("owner", t.Owner),
				logger.Error(err))
			continue
		}
		dispatched++
	}
	return dispatched, failed, nil
}

func (d *Dispatcher) fetchDue(ctx context.Context) ([]domain.Target, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.coordinatorURL+"/get-check-info", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build due-set request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query due set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("due-set query returned %d: %s", resp.StatusCode, snippet(resp.Body))
	}

	var due []domain.Target
	if err := json.NewDecoder(resp.Body).Decode(&due); err != nil {
		return nil, fmt.Errorf("failed to decode due set: %w", err)
	}
	return due, nil
}

// schedule posts the due entry's own flags, so flags the coordinator
// stripped stay stripped for this dispatch.
func (d *Dispatcher) schedule(ctx context.Context, t domain.Target) error {
	body, err := json.Marshal(domain.Overrides{
		Owner:            t.Owner,
		CheckSpelling:    &t.CheckSpelling,
		CheckPerformance: &t.CheckPerformance,
		CheckLinks:       &t.CheckLinks,
		Recursive:        &t.Recursive,
	})
	if err != nil {
		return fmt.Errorf("failed to encode schedule body: %w", err)
	}

	endpoint := d.coordinatorURL + "/schedule-check?url=" + url.QueryEscape(t.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build schedule request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach coordinator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("schedule-check returned %d: %s", resp.StatusCode, snippet(resp.Body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
