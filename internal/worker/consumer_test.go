package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/sitecheck/internal/checker"
	"github.com/MrSnakeDoc/sitecheck/internal/dedup"
	"github.com/MrSnakeDoc/sitecheck/internal/domain"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
	"github.com/MrSnakeDoc/sitecheck/internal/queue"
)

type fakeEngine struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeEngine) Check(_ context.Context, url string, _ checker.Options) (domain.PageReport, []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	return domain.PageReport{BaseStatus: 200}, nil
}

type fakeCrawler struct {
	runs int
	opts checker.Options
}

func (f *fakeCrawler) Run(_ context.Context, baseURL string, opts checker.Options) []domain.PageOutcome {
	f.runs++
	f.opts = opts
	return []domain.PageOutcome{
		{URL: baseURL, Report: domain.PageReport{BaseStatus: 200}},
		{URL: baseURL + "x", Report: domain.PageReport{BaseStatus: 404}},
	}
}

type fakeSubmitter struct {
	mu   sync.Mutex
	subs []domain.Submission
	err  error
}

func (f *fakeSubmitter) Submit(_ context.Context, s domain.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subs = append(f.subs, s)
	return nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type harness struct {
	queue     *queue.Memory
	engine    *fakeEngine
	crawler   *fakeCrawler
	submitter *fakeSubmitter
	consumer  *Consumer
}

func newHarness() *harness {
	h := &harness{
		queue:     queue.NewMemory(10 * time.Millisecond),
		engine:    &fakeEngine{},
		crawler:   &fakeCrawler{},
		submitter: &fakeSubmitter{},
	}
	h.consumer = NewConsumer(h.queue, dedup.NewCache(time.Minute, nil), h.engine, h.crawler, h.submitter, logger.NewNop())
	return h
}

func (h *harness) publish(t *testing.T, task domain.CheckTask) {
	t.Helper()
	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	if err := h.queue.Publish(context.Background(), data); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}

func (h *harness) handleNext(t *testing.T) *queue.Delivery {
	t.Helper()
	d, err := h.queue.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	h.consumer.Handle(context.Background(), d)
	return d
}

var task = domain.CheckTask{URL: "https://a.example/", Owner: "alice", Token: "tok", CheckLinks: true}

func TestHandleSubmitsAndAcks(t *testing.T) {
	h := newHarness()
	h.publish(t, task)
	h.handleNext(t)

	if h.submitter.count() != 1 {
		t.Fatalf("submissions = %d, want 1", h.submitter.count())
	}
	sub := h.submitter.subs[0]
	if sub.URL != task.URL || sub.Token != "tok" || len(sub.Checks) != 1 {
		t.Errorf("submission = %+v", sub)
	}
	if ready, inflight := h.queue.Len(); ready != 0 || inflight != 0 {
		t.Errorf("queue Len() = (%d, %d), want acked", ready, inflight)
	}
}

func TestHandleDropsDuplicate(t *testing.T) {
	h := newHarness()
	h.publish(t, task)
	h.publish(t, task)
	h.handleNext(t)
	h.handleNext(t)

	if h.submitter.count() != 1 {
		t.Errorf("submissions = %d, want 1", h.submitter.count())
	}
	if len(h.engine.calls) != 1 {
		t.Errorf("engine calls = %d, want 1", len(h.engine.calls))
	}
	if _, inflight := h.queue.Len(); inflight != 0 {
		t.Errorf("duplicate left in flight")
	}
}

func TestHandleForceRunBypassesDedup(t *testing.T) {
	h := newHarness()
	forced := task
	forced.ForceRun = true

	h.publish(t, task)
	h.publish(t, forced)
	h.publish(t, forced)
	for i := 0; i < 3; i++ {
		h.handleNext(t)
	}

	if h.submitter.count() != 3 {
		t.Errorf("submissions = %d, want 3", h.submitter.count())
	}
}

func TestHandleMalformedIsAcked(t *testing.T) {
	h := newHarness()
	_ = h.queue.Publish(context.Background(), []byte(`{not json`))
	_ = h.queue.Publish(context.Background(), []byte(`{"url":"https://a.example/"}`)) // no token
	h.handleNext(t)
	h.handleNext(t)

	if h.submitter.count() != 0 {
		t.Errorf("malformed task submitted")
	}
	if ready, inflight := h.queue.Len(); ready != 0 || inflight != 0 {
		t.Errorf("queue Len() = (%d, %d), want all acked", ready, inflight)
	}
}

func TestHandleSubmitFailureLeavesDelivery(t *testing.T) {
	h := newHarness()
	h.submitter.err = errors.New("coordinator down")
	h.publish(t, task)

	d := h.handleNext(t)
	if _, inflight := h.queue.Len(); inflight != 1 {
		t.Fatalf("in flight = %d, want the delivery un-acked", inflight)
	}

	// The broker redelivers; the retry must not be treated as a duplicate.
	h.submitter.err = nil
	h.queue.Nack(d)
	h.handleNext(t)

	if h.submitter.count() != 1 {
		t.Errorf("submissions = %d after redelivery, want 1", h.submitter.count())
	}
	if _, inflight := h.queue.Len(); inflight != 0 {
		t.Error("redelivered task not acked")
	}
}

func TestHandleRejectedSubmissionIsAcked(t *testing.T) {
	h := newHarness()
	h.submitter.err = fmt.Errorf("%w: coordinator answered 404", ErrRejected)
	h.publish(t, task)
	h.handleNext(t)

	if ready, inflight := h.queue.Len(); ready != 0 || inflight != 0 {
		t.Errorf("queue Len() = (%d, %d), want the refused task acked", ready, inflight)
	}
}

func TestHandleStaleTokenRunsOnce(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	q := queue.NewMemory(10 * time.Millisecond)
	engine := &fakeEngine{}
	c := NewConsumer(q, dedup.NewCache(time.Minute, nil), engine, &fakeCrawler{},
		NewHTTPSubmitter(srv.URL, time.Second), logger.NewNop())

	data, _ := json.Marshal(task)
	_ = q.Publish(context.Background(), data)
	d, err := q.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	c.Handle(context.Background(), d)

	if ready, inflight := q.Len(); ready != 0 || inflight != 0 {
		t.Fatalf("queue Len() = (%d, %d), want nothing left to redeliver", ready, inflight)
	}
	if len(engine.calls) != 1 || posts.Load() != 1 {
		t.Errorf("checks = %d, posts = %d, want 1 each", len(engine.calls), posts.Load())
	}
}

// extendingQueue is a Memory queue that also asks to be extended.
type extendingQueue struct {
	*queue.Memory
	every   time.Duration
	extends atomic.Int32
}

func (q *extendingQueue) ExtendEvery() time.Duration { return q.every }

func (q *extendingQueue) Extend(context.Context, *queue.Delivery) error {
	q.extends.Add(1)
	return nil
}

type slowEngine struct{ delay time.Duration }

func (e slowEngine) Check(context.Context, string, checker.Options) (domain.PageReport, []byte) {
	time.Sleep(e.delay)
	return domain.PageReport{BaseStatus: 200}, nil
}

func TestHandleExtendsWhileRunning(t *testing.T) {
	q := &extendingQueue{Memory: queue.NewMemory(10 * time.Millisecond), every: 5 * time.Millisecond}
	sub := &fakeSubmitter{}
	c := NewConsumer(q, dedup.NewCache(time.Minute, nil), slowEngine{delay: 60 * time.Millisecond},
		&fakeCrawler{}, sub, logger.NewNop())

	data, _ := json.Marshal(task)
	_ = q.Publish(context.Background(), data)
	d, err := q.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	c.Handle(context.Background(), d)

	n := q.extends.Load()
	if n < 2 {
		t.Errorf("extends during a 60ms task = %d, want at least 2", n)
	}
	time.Sleep(20 * time.Millisecond)
	if got := q.extends.Load(); got != n {
		t.Errorf("extends went from %d to %d after the task finished", n, got)
	}
	if sub.count() != 1 {
		t.Errorf("submissions = %d, want 1", sub.count())
	}
}

func TestHandleRecursive(t *testing.T) {
	h := newHarness()
	rec := task
	rec.Recursive = true
	rec.CheckLinks = false
	h.publish(t, rec)
	h.handleNext(t)

	if h.crawler.runs != 1 || len(h.engine.calls) != 0 {
		t.Fatalf("crawler runs = %d, engine calls = %d", h.crawler.runs, len(h.engine.calls))
	}
	if !h.crawler.opts.Links {
		t.Error("recursive run must check links")
	}
	if got := len(h.submitter.subs[0].Checks); got != 2 {
		t.Errorf("checks = %d, want 2", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness()
	h.publish(t, task)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.consumer.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for h.submitter.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("task was not processed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestHTTPSubmitter(t *testing.T) {
	var got domain.Submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/submit-check" || r.Method != http.MethodPost {
			http.Error(w, "wrong route", http.StatusNotFound)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad content type", http.StatusBadRequest)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got.Token != "tok" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("OK"))
	}))
	defer srv.Close()

	s := NewHTTPSubmitter(srv.URL+"/", time.Second)
	sub := domain.Submission{
		URL:   "https://a.example/",
		Token: "tok",
		Checks: []domain.PageOutcome{{
			URL:    "https://a.example/",
			Report: domain.PageReport{BaseStatus: 200},
		}},
	}
	if err := s.Submit(context.Background(), sub); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(got.Checks) != 1 || got.Checks[0].Report.BaseStatus != 200 {
		t.Errorf("server decoded %+v", got)
	}

	sub.Token = "wrong"
	if err := s.Submit(context.Background(), sub); !errors.Is(err, ErrRejected) {
		t.Errorf("Submit() on 401 error = %v, want ErrRejected", err)
	}
}

func TestHTTPSubmitterRetryableStatuses(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusUnauthorized, true},
		{http.StatusNotFound, true},
		{http.StatusTooManyRequests, false},
		{http.StatusRequestTimeout, false},
		{http.StatusInternalServerError, false},
		{http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewHTTPSubmitter(srv.URL, time.Second).Submit(context.Background(), domain.Submission{URL: "https://a.example/"})
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, ErrRejected); got != tt.permanent {
				t.Errorf("errors.Is(err, ErrRejected) = %v, want %v (err = %v)", got, tt.permanent, err)
			}
		})
	}
}
