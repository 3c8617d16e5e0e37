package checker

import (
	"context"
	"net/url"
	"time"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
)

// DefaultPolitenessDelay is the pause before a link on another host.
const DefaultPolitenessDelay = time.Second

// Crawler checks the reachability of every in-scope link of one page.
type Crawler struct {
	fetcher *Fetcher
	delay   time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	logger  logger.Logger
}

func NewCrawler(fetcher *Fetcher, delay time.Duration, log logger.Logger) *Crawler {
	if delay < 0 {
		delay = DefaultPolitenessDelay
	}
	return &Crawler{
		fetcher: fetcher,
		delay:   delay,
		sleep:   sleepCtx,
		logger:  log,
	}
}

// CheckLinks fetches each distinct in-scope link of body once and reports
// which ones are reachable, in document order. Links are never followed
// further.
func (c *Crawler) CheckLinks(ctx context.Context, pageURL string, body []byte) domain.LinkSummary {
	summary := domain.LinkSummary{Results: []domain.LinkResult{}}

	origin, err := url.Parse(pageURL)
	if err != nil {
		c.logger.Warn("cannot parse page url for link check",
			logger.String("url", pageURL),
			logger.Error(err))
		return summary
	}

	for _, link := range ExtractLinks(origin, origin, body) {
		target, err := url.Parse(link)
		if err != nil {
			continue
		}
		if !sameHost(origin, target) && c.delay > 0 {
			if err := c.sleep(ctx, c.delay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		reachable := domain.IsReachable(c.fetcher.Status(ctx, link))
		if !reachable {
			summary.Failed++
		}
		summary.Results = append(summary.Results, domain.LinkResult{URL: link, Reachable: reachable})
	}

	c.logger.Debug("link check finished",
		logger.String("url", pageURL),
		logger.Int("checked", len(summary.Results)),
		logger.Int("failed", summary.Failed))

	return summary
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
