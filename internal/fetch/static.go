package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricescout/pricescout/internal/ratelimit"
)

const defaultStaticTimeout = 5 * time.Second

// Static issues a single outbound GET with a realistic client identifier and
// parses the body into a document. It fails fast and never retries; retries
// belong to the caller. Stateless, so safe to share across pool workers.
type Static struct {
	client    *http.Client
	userAgent string
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
}

type StaticOptions struct {
	Timeout   time.Duration
	UserAgent string
	// Limiter spaces requests per host when set.
	Limiter *ratelimit.Limiter
	// Transport overrides the HTTP transport, used by tests to stub responses.
	Transport http.RoundTripper
}

func NewStatic(opts StaticOptions) *Static {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultStaticTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return &Static{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		userAgent: opts.UserAgent,
		limiter:   opts.Limiter,
		logger:    slog.Default().With("component", "static_fetch"),
	}
}

func (s *Static) FetchPage(ctx context.Context, url string) (*Result, error) {
	if err := s.limiter.Wait(ctx, url); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d for %s", ErrFetchFailed, resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response body: %w", err)
	}

	s.logger.Debug("fetched page", "url", url, "duration", time.Since(start))
	return &Result{Doc: doc, Tier: TierStatic, URL: url}, nil
}
