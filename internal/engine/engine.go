package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pricescout/pricescout/internal/catalog"
	"github.com/pricescout/pricescout/internal/extract"
	"github.com/pricescout/pricescout/internal/fetch"
)

const (
	defaultWorkers  = 5
	defaultMaxPages = 2
)

// Engine is the extraction facade: listing scrapes, cached single-product
// lookups with tier fallback, and bounded-concurrency batch refresh.
type Engine struct {
	catalog  *catalog.Catalog
	resolver *catalog.Resolver
	static   fetch.StaticFetcher
	browser  fetch.BrowserFetcher
	cache    *productCache
	workers  int
	maxPages int
	metrics  *Metrics
	logger   *slog.Logger
}

type Options struct {
	Workers     int
	MaxPages    int
	CacheSize   int
	CacheWindow time.Duration
	Metrics     *Metrics

	// Now overrides the cache clock in tests.
	Now func() time.Time
}

func New(cat *catalog.Catalog, static fetch.StaticFetcher, browser fetch.BrowserFetcher, opts Options) (*Engine, error) {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	cache, err := newProductCache(opts.CacheSize, opts.CacheWindow, opts.Now)
	if err != nil {
		return nil, err
	}
	return &Engine{
		catalog:  cat,
		resolver: catalog.NewResolver(cat),
		static:   static,
		browser:  browser,
		cache:    cache,
		workers:  opts.Workers,
		maxPages: opts.MaxPages,
		metrics:  opts.Metrics,
		logger:   slog.Default().With("component", "engine"),
	}, nil
}

// ResolveSite maps a URL to its catalog site id.
func (e *Engine) ResolveSite(rawURL string) (string, bool) {
	return e.resolver.Resolve(rawURL)
}

// ScrapeListing extracts product records from a site's search results. With a
// query the search box must be driven, so the browser tier paginates through
// the walker; a bare listing URL capped to one page is satisfied by a single
// static fetch.
func (e *Engine) ScrapeListing(ctx context.Context, siteURL, query string, maxPages int) ([]extract.Record, error) {
	siteID, ok := e.resolver.Resolve(siteURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSite, siteURL)
	}
	set, err := e.catalog.Get(siteID)
	if err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		maxPages = e.maxPages
	}

	e.logger.Info("scraping listing", "site", siteID, "query", query, "max_pages", maxPages)

	if query == "" && maxPages == 1 {
		res, err := e.static.FetchPage(ctx, siteURL)
		if err != nil {
			e.metrics.incFetchError(string(fetch.TierStatic))
			return nil, err
		}
		e.metrics.incPage(string(res.Tier))
		return e.extractPage(res, set), nil
	}

	return e.walkListing(ctx, siteURL, query, set, maxPages)
}

// ScrapeSingleProduct extracts one record from a product detail page. Within
// one freshness window repeated calls for the same URL are served from the
// cache; a miss runs the static tier and falls back to the browser tier when
// the cheap result lacks a title or price.
func (e *Engine) ScrapeSingleProduct(ctx context.Context, productURL string) (extract.Record, error) {
	siteID, ok := e.resolver.Resolve(productURL)
	if !ok {
		return extract.Record{}, fmt.Errorf("%w: %s", ErrUnsupportedSite, productURL)
	}
	set, err := e.catalog.Get(siteID)
	if err != nil {
		return extract.Record{}, err
	}

	if rec, hit := e.cache.get(productURL); hit {
		e.metrics.incCache(true)
		return rec, nil
	}
	e.metrics.incCache(false)

	rec, err := e.fetchProductTiered(ctx, productURL, set)
	if err != nil {
		return extract.Record{}, err
	}

	// Only successful lookups are memoized, so a transient failure does not
	// mask the product for a whole freshness window.
	e.cache.put(productURL, rec)
	return rec, nil
}

// RefreshResult is one batch-refresh outcome. Failures are per-URL; a failed
// refresh never aborts its siblings.
type RefreshResult struct {
	URL    string
	Record extract.Record
	Err    error
}

// RefreshBatch refreshes every URL with the same bounded worker pool used for
// per-page extraction. The static tier runs in parallel across workers; any
// browser-tier fallback serializes on the shared session internally.
func (e *Engine) RefreshBatch(ctx context.Context, urls []string) []RefreshResult {
	results := make([]RefreshResult, len(urls))
	runBounded(e.workers, len(urls), func(i int) {
		rec, err := e.ScrapeSingleProduct(ctx, urls[i])
		results[i] = RefreshResult{URL: urls[i], Record: rec, Err: err}
	})
	return results
}

// Shutdown releases the shared browser-automation session. Call once at
// process exit.
func (e *Engine) Shutdown() error {
	if e.browser == nil {
		return nil
	}
	return e.browser.Close()
}

// fetchProductTiered is the fallback ladder for single-product lookups:
// static first, browser only when the cheap tier yields no title or no price,
// explicit failure when both tiers come back unusable.
func (e *Engine) fetchProductTiered(ctx context.Context, productURL string, set catalog.SelectorSet) (extract.Record, error) {
	var staticRec extract.Record

	res, err := e.static.FetchPage(ctx, productURL)
	if err != nil {
		e.metrics.incFetchError(string(fetch.TierStatic))
		e.logger.Debug("static tier failed", "url", productURL, "error", err)
	} else {
		e.metrics.incPage(string(res.Tier))
		staticRec = extract.DetailPage(res.Doc, set, productURL)
		if staticRec.Title != "" && staticRec.Price != "" {
			return staticRec, nil
		}
	}

	e.metrics.incFallback()
	e.logger.Info("falling back to browser tier", "url", productURL)

	browserRes, err := e.browser.FetchProduct(ctx, productURL, set)
	if err != nil {
		e.metrics.incFetchError(string(fetch.TierBrowser))
		e.logger.Warn("browser tier failed", "url", productURL, "error", err)
	} else {
		e.metrics.incPage(string(browserRes.Tier))
		browserRec := extract.DetailPage(browserRes.Doc, set, productURL)
		if browserRec.Usable() {
			return browserRec, nil
		}
	}

	// the browser tier found nothing; a partially-usable static record still
	// beats reporting failure
	if staticRec.Usable() {
		return staticRec, nil
	}
	return extract.Record{}, fmt.Errorf("%w: %s", ErrProductNotFound, productURL)
}
