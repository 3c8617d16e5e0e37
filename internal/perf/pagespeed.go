// Package perf delegates performance scoring to the PageSpeed Insights API.
package perf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
)

const (
	DefaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	DefaultTimeout  = 90 * time.Second
)

// PageSpeed scores pages with the desktop strategy and the performance
// category only.
type PageSpeed struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

func NewPageSpeed(endpoint, apiKey string, timeout time.Duration) *PageSpeed {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PageSpeed{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

type runResponse struct {
	LighthouseResult struct {
		Categories struct {
			Performance struct {
				Score *float64 `json:"score"`
			} `json:"performance"`
		} `json:"categories"`
		Audits json.RawMessage `json:"audits"`
	} `json:"lighthouseResult"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Score runs one analysis. The returned score is in [0, 1].
func (p *PageSpeed) Score(ctx context.Context, pageURL string) (domain.PerformanceReport, error) {
	q := url.Values{}
	q.Set("url", pageURL)
	q.Set("strategy", "desktop")
	q.Set("category", "performance")
	if p.apiKey != "" {
		q.Set("key", p.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return domain.PerformanceReport{}, fmt.Errorf("failed to build pagespeed request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.PerformanceReport{}, fmt.Errorf("failed to call pagespeed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PerformanceReport{}, fmt.Errorf("failed to read pagespeed response: %w", err)
	}

	var out runResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return domain.PerformanceReport{}, fmt.Errorf("failed to decode pagespeed response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil {
			return domain.PerformanceReport{}, fmt.Errorf("pagespeed returned %d: %s", resp.StatusCode, out.Error.Message)
		}
		return domain.PerformanceReport{}, fmt.Errorf("pagespeed returned %d", resp.StatusCode)
	}

	score := out.LighthouseResult.Categories.Performance.Score
	if score == nil {
		return domain.PerformanceReport{}, fmt.Errorf("pagespeed response has no performance score for %s", pageURL)
	}

	return domain.PerformanceReport{
		Score:  *score,
		Audits: out.LighthouseResult.Audits,
	}, nil
}
