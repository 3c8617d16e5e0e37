package checker

import (
	"context"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
	"github.com/MrSnakeDoc/sitecheck/internal/logger"
)

// Scorer rates the performance of a page.
type Scorer interface {
	Score(ctx context.Context, url string) (domain.PerformanceReport, error)
}

// SpellChecker proposes corrections for the visible text of a page.
type SpellChecker interface {
	Check(body []byte, extraWords, ignoreWords []string) (map[string]string, error)
}

// Options selects the optional checks of one run.
type Options struct {
	Spelling    bool
	Performance bool
	Links       bool
	ExtraWords  []string
	IgnoreWords []string
}

// OptionsFromTask maps the task flags. A recursive task always checks links.
func OptionsFromTask(task domain.CheckTask) Options {
	return Options{
		Spelling:    task.CheckSpelling,
		Performance: task.CheckPerformance,
		Links:       task.LinksEnabled(),
		ExtraWords:  task.SpellingExtraWords,
		IgnoreWords: task.SpellingIgnoreWords,
	}
}

// Engine checks a single URL.
type Engine struct {
	fetcher *Fetcher
	crawler *Crawler
	scorer  Scorer
	speller SpellChecker
	logger  logger.Logger
}

// NewEngine wires the delegates. A nil scorer or speller leaves that result
// absent.
func NewEngine(fetcher *Fetcher, crawler *Crawler, scorer Scorer, speller SpellChecker, log logger.Logger) *Engine {
	return &Engine{
		fetcher: fetcher,
		crawler: crawler,
		scorer:  scorer,
		speller: speller,
		logger:  log,
	}
}

// Check fetches url and runs the requested optional checks. Spelling and
// links are only checked on a reachable page, not on an error page. The
// fetched body is returned for link harvesting. Network failures end up in
// BaseStatus.
func (e *Engine) Check(ctx context.Context, url string, opts Options) (domain.PageReport, []byte) {
	status, body := e.fetcher.Fetch(ctx, url)
	report := domain.PageReport{BaseStatus: status}
	reachable := domain.IsReachable(status)

	if opts.Performance {
		if e.scorer == nil {
			e.logger.Debug("performance check requested but no scorer configured", logger.String("url", url))
		} else if perf, err := e.scorer.Score(ctx, url); err != nil {
			e.logger.Warn("performance check failed", logger.String("url", url), logger.Error(err))
		} else {
			report.Performance = &perf
		}
	}

	if opts.Spelling && reachable && e.speller != nil {
		suggestions, err := e.speller.Check(body, opts.ExtraWords, opts.IgnoreWords)
		if err != nil {
			e.logger.Warn("spelling check failed", logger.String("url", url), logger.Error(err))
		} else {
			report.Spelling = suggestions
		}
	}

	if opts.Links && reachable && e.crawler != nil {
		links := e.crawler.CheckLinks(ctx, url, body)
		report.Links = &links
	}

	e.logger.Debug("url checked",
		logger.String("url", url),
		logger.Int("status", status),
		logger.Bool("reachable", reachable))

	return report, body
}
