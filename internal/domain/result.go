package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// StatusTLSError is reported when the TLS handshake or certificate verification fails.
	StatusTLSError = -1
	// StatusConnectionError is reported for DNS, connection and other transport failures.
	StatusConnectionError = -2

	// DefaultPerformanceThreshold is the score below which performance counts as degraded.
	DefaultPerformanceThreshold = 0.75
)

// IsReachable reports whether a reachability status passes the base check.
func IsReachable(status int) bool {
	switch status {
	case 200, 204, 301, 302:
		return true
	default:
		return false
	}
}

// PageReport is the raw outcome of checking one URL, as produced by the
// worker. Optional sections are nil when the check was not requested or its
// delegate failed. A spelling run without findings is an empty, non-nil map.
type PageReport struct {
	BaseStatus  int                `json:"base_status"`
	Performance *PerformanceReport `json:"lighthouse,omitempty"`
	Spelling    map[string]string  `json:"spelling"`
	Links       *LinkSummary       `json:"links,omitempty"`
}

// PerformanceReport carries the external scorer's output.
type PerformanceReport struct {
	Score  float64         `json:"score"`
	Audits json.RawMessage `json:"results,omitempty"`
}

// LinkSummary aggregates the link check of one page.
type LinkSummary struct {
	Failed  int          `json:"failed"`
	Results []LinkResult `json:"results"`
}

// FailedLinks returns the unreachable links in check order.
func (s *LinkSummary) FailedLinks() []string {
	if s == nil {
		return nil
	}
	var failed []string
	for _, r := range s.Results {
		if !r.Reachable {
			failed = append(failed, r.URL)
		}
	}
	return failed
}

// LinkResult is encoded as a single-entry object {"<link>": reachable}.
type LinkResult struct {
	URL       string
	Reachable bool
}

func (r LinkResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]bool{r.URL: r.Reachable})
}

func (r *LinkResult) UnmarshalJSON(data []byte) error {
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to decode link result: %w", err)
	}
	if len(m) != 1 {
		return fmt.Errorf("link result must have exactly one entry, got %d", len(m))
	}
	for link, ok := range m {
		r.URL, r.Reachable = link, ok
	}
	return nil
}

// PageOutcome pairs a checked URL with its report. On the wire it is a two
// element array [url, report].
type PageOutcome struct {
	URL    string
	Report PageReport
}

func (o PageOutcome) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{o.URL, o.Report})
}

func (o *PageOutcome) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("failed to decode check entry: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("check entry must be [url, result], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &o.URL); err != nil {
		return fmt.Errorf("failed to decode checked url: %w", err)
	}
	if err := json.Unmarshal(pair[1], &o.Report); err != nil {
		return fmt.Errorf("failed to decode result for %s: %w", o.URL, err)
	}
	return nil
}

// Submission is what a worker posts to /submit-check after finishing a task.
type Submission struct {
	URL    string        `json:"url"`
	Token  string        `json:"token"`
	Checks []PageOutcome `json:"check"`
}

// CheckResult is one persisted row of history: one checked URL in one run.
type CheckResult struct {
	ID             string    `json:"id"`
	TargetID       string    `json:"parent"`
	URL            string    `json:"url"`
	CheckedAt      time.Time `json:"timestamp"`
	BaseStatus     int       `json:"base_status"`
	BaseCheck      bool      `json:"base_check"`
	FailureMessage string    `json:"check_failed_message"`

	PerformanceScore  *float64        `json:"lighthouse_score,omitempty"`
	PerformanceAudits json.RawMessage `json:"lighthouse_results,omitempty"`

	LinksFailed *int         `json:"links_failed_count,omitempty"`
	LinkResults []LinkResult `json:"links_results,omitempty"`

	Spelling map[string]string `json:"spelling,omitempty"`
}

// HasExtendedPayload reports whether the row carries any optional check output.
func (r CheckResult) HasExtendedPayload() bool {
	return r.PerformanceScore != nil || r.LinksFailed != nil || r.Spelling != nil
}

// NewCheckResult turns a worker report into a history row. The pass flag is
// derived from the failure message so both always agree.
func NewCheckResult(id, targetID, url string, report PageReport, at time.Time, perfThreshold float64) CheckResult {
	res := CheckResult{
		ID:         id,
		TargetID:   targetID,
		URL:        url,
		CheckedAt:  at,
		BaseStatus: report.BaseStatus,
		Spelling:   report.Spelling,
	}

	if report.Performance != nil {
		score := report.Performance.Score
		res.PerformanceScore = &score
		res.PerformanceAudits = report.Performance.Audits
	}

	if report.Links != nil {
		failed := report.Links.Failed
		res.LinksFailed = &failed
		res.LinkResults = report.Links.Results
	}

	res.FailureMessage = FailureMessage(url, report, perfThreshold)
	res.BaseCheck = res.FailureMessage == ""
	return res
}

// FailureMessage concatenates the failure texts that fired, always in the
// order reachability, performance, links. Empty means the URL passed.
func FailureMessage(url string, report PageReport, perfThreshold float64) string {
	var b strings.Builder

	if !IsReachable(report.BaseStatus) {
		fmt.Fprintf(&b, "ERROR: URL unreachable:\n%s\n", url)
	}

	if report.Performance != nil && report.Performance.Score < perfThreshold {
		fmt.Fprintf(&b, "Warning: performance score degraded\n%s\n", url)
	}

	if report.Links != nil && report.Links.Failed > 0 {
		b.WriteString("Warning: Dead Links on Website ->\n")
		b.WriteString(strings.Join(report.Links.FailedLinks(), "\n"))
	}

	return b.String()
}

// Status summarizes the latest result of a target the way the overview shows it.
func Status(latest *CheckResult) string {
	switch {
	case latest == nil:
		return "UNKNOWN"
	case IsReachable(latest.BaseStatus) && latest.FailureMessage != "":
		return "WARNING"
	case IsReachable(latest.BaseStatus):
		return "OK"
	default:
		return "ERROR"
	}
}
