// Package notify hands alerts to the dispatch service.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
)

type Notifier interface {
	Notify(ctx context.Context, alert domain.Alert) error
}

// HTTP posts alerts to {server}/smart-send with basic auth.
type HTTP struct {
	client   *http.Client
	endpoint string
	user     string
	password string
}

func NewHTTP(server, user, password string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		client:   &http.Client{Timeout: timeout},
		endpoint: strings.TrimSuffix(server, "/") + "/smart-send",
		user:     user,
		password: password,
	}
}

func (n *HTTP) Notify(ctx context.Context, alert domain.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(n.user, n.password)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach dispatch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("dispatch returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Log only writes alerts to the log. Used when no dispatch server is set.
type Log struct {
	logger logger.Logger
}

func NewLog(log logger.Logger) *Log {
	return &Log{logger: log}
}

func (n *Log) Notify(_ context.Context, alert domain.Alert) error {
	n.logger.Warn("alert (dispatch not configured)",
		logger.Strings("users", alert.Users),
		logger.String("msg", alert.Msg))
	return nil
}
