// Package checker runs the per-URL health checks: reachability, link
// checking, spelling and performance, and the recursive multi-page crawl.
package checker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/sitecheck/internal/domain"
)

const (
	DefaultFetchTimeout = 20 * time.Second
	DefaultMaxBodyBytes = 4 << 20
	DefaultMaxRedirects = 5
	DefaultUserAgent    = "sitecheck/1.0"
)

// FetchOptions tunes the reachability client.
type FetchOptions struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	MaxRedirects int // 0 uses DefaultMaxRedirects, negative never follows
	UserAgent    string
	Transport    http.RoundTripper // nil uses a clone of http.DefaultTransport
}

// Fetcher performs GET requests and maps the outcome onto the status space
// used by results: an HTTP code, StatusTLSError or StatusConnectionError.
type Fetcher struct {
	client    *http.Client
	maxBody   int64
	userAgent string
}

func NewFetcher(opts FetchOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	switch {
	case opts.MaxRedirects == 0:
		opts.MaxRedirects = DefaultMaxRedirects
	case opts.MaxRedirects < 0:
		opts.MaxRedirects = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	maxRedirects := opts.MaxRedirects
	return &Fetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		maxBody:   opts.MaxBodyBytes,
		userAgent: opts.UserAgent,
	}
}

// Fetch returns the status and the (capped) body of url. Transport failures
// are reported through the status, never as an error.
func (f *Fetcher) Fetch(ctx context.Context, url string) (int, []byte) {
	resp, err := f.do(ctx, url)
	if err != nil {
		return classify(err), nil
	}
	defer resp.Body.Close()

	// A truncated read still carries a meaningful status.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	return resp.StatusCode, body
}

// Status is Fetch without keeping the body.
func (f *Fetcher) Status(ctx context.Context, url string) int {
	resp, err := f.do(ctx, url)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBody))
	return resp.StatusCode
}

func (f *Fetcher) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	return f.client.Do(req)
}

func classify(err error) int {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostname         x509.HostnameError
		invalid          x509.CertificateInvalidError
		verification     *tls.CertificateVerificationError
		record           tls.RecordHeaderError
	)
	switch {
	case errors.As(err, &unknownAuthority),
		errors.As(err, &hostname),
		errors.As(err, &invalid),
		errors.As(err, &verification),
		errors.As(err, &record):
		return domain.StatusTLSError
	default:
		return domain.StatusConnectionError
	}
}
