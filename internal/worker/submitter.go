package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
)

// ErrRejected marks a submission the coordinator refused for good: an
// unknown target, a stale token or a body it cannot read. Sending the same
// results again gives the same answer.
var ErrRejected = errors.New("submission rejected")

// Submitter hands a finished run to the coordinator.
type Submitter interface {
	Submit(ctx context.Context, s domain.Submission) error
}

// HTTPSubmitter posts submissions to the coordinator's /submit-check.
type HTTPSubmitter struct {
	client   *http.Client
	endpoint string
}

func NewHTTPSubmitter(coordinatorURL string, timeout time.Duration) *HTTPSubmitter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSubmitter{
		client:   &http.Client{Timeout: timeout},
		endpoint: strings.TrimSuffix(coordinatorURL, "/") + "/submit-check",
	}
}

func (s *HTTPSubmitter) Submit(ctx context.Context, sub domain.Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to submit results for %s: %w", sub.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("coordinator answered %d for %s: %s",
			resp.StatusCode, sub.URL, strings.TrimSpace(string(msg)))
		if permanent(resp.StatusCode) {
			return fmt.Errorf("%w: %v", ErrRejected, err)
		}
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// permanent reports whether a status means the request itself is wrong.
// Throttling and timeouts are worth another try.
func permanent(status int) bool {
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout {
		return false
	}
	return status >= 400 && status < 500
}
