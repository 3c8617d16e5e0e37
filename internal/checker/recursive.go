package checker

import (
	"context"
	"net/url"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
)

// Recursive crawls every page reachable from a base URL inside its network
// location, running the full engine on each page breadth first.
type Recursive struct {
	engine   *Engine
	maxPages int
	logger   logger.Logger
}

// NewRecursive returns a controller visiting at most maxPages pages per run.
// maxPages <= 0 disables the bound.
func NewRecursive(engine *Engine, maxPages int, log logger.Logger) *Recursive {
	return &Recursive{engine: engine, maxPages: maxPages, logger: log}
}

// Run returns one outcome per visited page, in visit order.
func (r *Recursive) Run(ctx context.Context, baseURL string, opts Options) []domain.PageOutcome {
	base, err := url.Parse(baseURL)
	if err != nil {
		r.logger.Warn("cannot parse base url for crawl", logger.String("url", baseURL), logger.Error(err))
		report, _ := r.engine.Check(ctx, baseURL, opts)
		return []domain.PageOutcome{{URL: baseURL, Report: report}}
	}

	visited := map[string]bool{Normalize(base): true}
	pending := []string{baseURL}
	var outcomes []domain.PageOutcome

	for len(pending) > 0 {
		if r.maxPages > 0 && len(outcomes) >= r.maxPages {
			r.logger.Warn("page limit reached, crawl truncated",
				logger.String("url", baseURL),
				logger.Int("max_pages", r.maxPages),
				logger.Int("dropped", len(pending)))
			break
		}
		if ctx.Err() != nil {
			r.logger.Info("crawl interrupted", logger.String("url", baseURL), logger.Int("pages", len(outcomes)))
			break
		}

		page := pending[0]
		pending = pending[1:]

		report, body := r.engine.Check(ctx, page, opts)
		outcomes = append(outcomes, domain.PageOutcome{URL: page, Report: report})

		pageURL, err := url.Parse(page)
		if err != nil || len(body) == 0 {
			continue
		}
		for _, link := range ExtractLinks(base, pageURL, body) {
			if visited[link] {
				continue
			}
			visited[link] = true
			pending = append(pending, link)
		}
	}

	r.logger.Info("crawl finished",
		logger.String("url", baseURL),
		logger.Int("pages", len(outcomes)))

	return outcomes
}
