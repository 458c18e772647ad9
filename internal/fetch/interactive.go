package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
	"github.com/pricescout/pricescout/internal/browser"
	"github.com/pricescout/pricescout/internal/catalog"
)

const (
	defaultWaitTimeout  = 10 * time.Second
	defaultPollInterval = 250 * time.Millisecond
)

// Interactive drives the shared browser session. Strictly slower than the
// static tier and reserved for client-rendered content, search-box interaction
// and pagination clicks.
type Interactive struct {
	session      *browser.Session
	waitTimeout  time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

type InteractiveOptions struct {
	WaitTimeout  time.Duration
	PollInterval time.Duration
}

func NewInteractive(session *browser.Session, opts InteractiveOptions) *Interactive {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaultWaitTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &Interactive{
		session:      session,
		waitTimeout:  opts.WaitTimeout,
		pollInterval: opts.PollInterval,
		logger:       slog.Default().With("component", "interactive_fetch"),
	}
}

func (f *Interactive) Close() error {
	return f.session.Close()
}

// FetchProduct renders one product detail page and snapshots it. The lease is
// released before returning, so the caller gets a plain parsed document.
func (f *Interactive) FetchProduct(ctx context.Context, url string, set catalog.SelectorSet) (*Result, error) {
	page, release, err := f.session.Lease(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := f.navigate(page, url); err != nil {
		return nil, err
	}

	// Presence of the title is the readiness signal for detail pages; a
	// timeout just means we snapshot whatever rendered.
	waitSel := set.ProductTitle
	if waitSel == "" {
		waitSel = set.Title
	}
	f.waitPresent(page, waitSel)

	return snapshot(page)
}

// OpenListing loads the site, runs the search when a query and search box are
// given, and waits for result containers before handing the live page to the
// caller. The browser lease is held until the returned session is closed.
func (f *Interactive) OpenListing(ctx context.Context, url, query string, set catalog.SelectorSet) (ListingSession, error) {
	page, release, err := f.session.Lease(ctx)
	if err != nil {
		return nil, err
	}

	if err := f.navigate(page, url); err != nil {
		release()
		return nil, err
	}

	if query != "" && set.SearchBox != "" {
		if err := f.search(page, set.SearchBox, query); err != nil {
			release()
			return nil, err
		}
	}

	if !f.waitPresent(page, set.Container) {
		release()
		return nil, fmt.Errorf("%w: no result containers appeared on %s", ErrFetchFailed, url)
	}

	return &listingPage{
		page:         page,
		release:      release,
		set:          set,
		waitTimeout:  f.waitTimeout,
		pollInterval: f.pollInterval,
		logger:       f.logger,
	}, nil
}

func (f *Interactive) navigate(page playwright.Page, url string) error {
	_, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(f.waitTimeout.Milliseconds()) * 3),
	})
	if err != nil {
		return fmt.Errorf("%w: navigation to %s: %v", ErrFetchFailed, url, err)
	}
	return nil
}

func (f *Interactive) search(page playwright.Page, searchBox, query string) error {
	box := page.Locator(searchBox).First()
	if err := box.Fill(query); err != nil {
		return fmt.Errorf("%w: failed to fill search box: %v", ErrFetchFailed, err)
	}
	if err := box.Press("Enter"); err != nil {
		return fmt.Errorf("%w: failed to submit search: %v", ErrFetchFailed, err)
	}
	return nil
}

// waitPresent waits for the selector with a bounded timeout. A timed-out wait
// is "not found", never an error that aborts the caller.
func (f *Interactive) waitPresent(page playwright.Page, selector string) bool {
	if selector == "" {
		return false
	}
	_, err := page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(f.waitTimeout.Milliseconds())),
	})
	return err == nil
}

// listingPage is the playwright-backed ListingSession.
type listingPage struct {
	page         playwright.Page
	release      func()
	set          catalog.SelectorSet
	waitTimeout  time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

func (l *listingPage) Document() (*Result, error) {
	return snapshot(l.page)
}

func (l *listingPage) NextPage(ctx context.Context) (bool, error) {
	if l.set.NextPage == "" {
		return false, nil
	}

	before, err := l.containerSignature()
	if err != nil {
		return false, err
	}

	control := l.page.Locator(l.set.NextPage).First()
	count, err := control.Count()
	if err != nil || count == 0 {
		return false, nil
	}
	if err := control.Click(); err != nil {
		l.logger.Debug("next-page click failed", "error", err)
		return false, nil
	}

	return l.waitForChange(ctx, before), nil
}

func (l *listingPage) Close() {
	l.release()
}

// waitForChange polls the container snapshot until it differs from the prior
// page's or the timeout elapses. Content-change-based waiting replaces fixed
// sleeps, which are flaky under slow networks and wasteful under fast ones.
func (l *listingPage) waitForChange(ctx context.Context, before string) bool {
	deadline := time.Now().Add(l.waitTimeout)
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			sig, err := l.containerSignature()
			if err == nil && sig != before && sig != "" {
				return true
			}
			if time.Now().After(deadline) {
				return false
			}
		}
	}
}

// containerSignature fingerprints the current container set: the count plus
// the first container's text is enough to detect a page transition.
func (l *listingPage) containerSignature() (string, error) {
	html, err := l.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse page content: %w", err)
	}
	containers := doc.Find(l.set.Container)
	first := strings.TrimSpace(containers.First().Text())
	if len(first) > 120 {
		first = first[:120]
	}
	return fmt.Sprintf("%d|%s", containers.Length(), first), nil
}

func snapshot(page playwright.Page) (*Result, error) {
	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read page content: %v", ErrFetchFailed, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page content: %w", err)
	}
	return &Result{Doc: doc, Tier: TierBrowser, URL: page.URL()}, nil
}
