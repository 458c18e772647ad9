package fetch

import (
	"context"
	"errors"

	"github.com/PuerkitoBio/goquery"
	"github.com/pricescout/pricescout/internal/catalog"
)

var ErrFetchFailed = errors.New("fetch failed")

// Tier identifies which strategy produced a result, ordered by cost.
type Tier string

const (
	TierStatic  Tier = "static"
	TierBrowser Tier = "browser"
)

// Result is a parsed page. The document is owned by the call that produced it;
// selections taken from it are only valid against this document and must not
// be mixed across results.
type Result struct {
	Doc  *goquery.Document
	Tier Tier
	URL  string
}

// Containers returns the product container selections matched by the locator.
func (r *Result) Containers(selector string) []*goquery.Selection {
	var containers []*goquery.Selection
	r.Doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		containers = append(containers, s)
	})
	return containers
}

// StaticFetcher is the cheap tier: one plain GET, no script execution.
type StaticFetcher interface {
	FetchPage(ctx context.Context, url string) (*Result, error)
}

// BrowserFetcher is the expensive tier: full rendering and scripted
// interaction against the shared automation session.
type BrowserFetcher interface {
	// FetchProduct renders a product detail page and returns its document.
	FetchProduct(ctx context.Context, url string, set catalog.SelectorSet) (*Result, error)

	// OpenListing navigates to the site, types the query into the search box
	// when one is configured, waits for result containers, and returns a live
	// session the pagination walker can drive. The session holds the browser
	// lease until closed.
	OpenListing(ctx context.Context, url, query string, set catalog.SelectorSet) (ListingSession, error)

	// Close releases the underlying automation session.
	Close() error
}

// ListingSession is one open, stateful search-results page. Page-to-page
// operations are inherently sequential; a session is not safe for concurrent
// use.
type ListingSession interface {
	// Document snapshots the current page into a parsed document.
	Document() (*Result, error)

	// NextPage activates the next-page control and waits for the container set
	// to change. It returns false, with no error, when the control is
	// missing, activation fails, or the wait times out: all of these terminate
	// pagination normally.
	NextPage(ctx context.Context) (bool, error)

	Close()
}
