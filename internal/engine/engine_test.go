package engine

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricescout/pricescout/internal/catalog"
	"github.com/pricescout/pricescout/internal/fetch"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(map[string]catalog.SelectorSet{
		"shop": {
			Hosts:     []string{"shop.example"},
			Container: "div.card",
			Title:     ".title",
			Price:     ".price",
			Rating:    ".rating",
			URL:       "a.link",
			SearchBox: "input.search",
			NextPage:  "a.next",

			ProductTitle: "h1.pt",
			ProductPrice: "span.pp",
		},
	})
	require.NoError(t, err)
	return c
}

func resultFromHTML(t *testing.T, tier fetch.Tier, url, html string) *fetch.Result {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return &fetch.Result{Doc: doc, Tier: tier, URL: url}
}

func card(title, price string) string {
	var b strings.Builder
	b.WriteString(`<div class="card">`)
	if title != "" {
		b.WriteString(`<span class="title">` + title + `</span>`)
	}
	if price != "" {
		b.WriteString(`<span class="price">` + price + `</span>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

type stubStatic struct {
	calls int64
	fn    func(url string) (*fetch.Result, error)
}

func (s *stubStatic) FetchPage(ctx context.Context, url string) (*fetch.Result, error) {
	atomic.AddInt64(&s.calls, 1)
	return s.fn(url)
}

type stubListing struct {
	pages   []*fetch.Result
	current int
	closed  bool
}

func (l *stubListing) Document() (*fetch.Result, error) {
	return l.pages[l.current], nil
}

func (l *stubListing) NextPage(ctx context.Context) (bool, error) {
	if l.current+1 >= len(l.pages) {
		return false, nil
	}
	l.current++
	return true, nil
}

func (l *stubListing) Close() { l.closed = true }

type stubBrowser struct {
	listing      *stubListing
	productFn    func(url string) (*fetch.Result, error)
	productCalls int64
	closed       bool
}

func (b *stubBrowser) FetchProduct(ctx context.Context, url string, set catalog.SelectorSet) (*fetch.Result, error) {
	atomic.AddInt64(&b.productCalls, 1)
	if b.productFn == nil {
		return nil, fetch.ErrFetchFailed
	}
	return b.productFn(url)
}

func (b *stubBrowser) OpenListing(ctx context.Context, url, query string, set catalog.SelectorSet) (fetch.ListingSession, error) {
	if b.listing == nil {
		return nil, fetch.ErrFetchFailed
	}
	return b.listing, nil
}

func (b *stubBrowser) Close() error {
	b.closed = true
	return nil
}

func newTestEngine(t *testing.T, static fetch.StaticFetcher, browser fetch.BrowserFetcher, opts Options) *Engine {
	t.Helper()
	eng, err := New(testCatalog(t), static, browser, opts)
	require.NoError(t, err)
	return eng
}

func TestScrapeListingUnsupportedSite(t *testing.T) {
	eng := newTestEngine(t, &stubStatic{fn: func(string) (*fetch.Result, error) {
		t.Fatal("fetch must not be attempted for unsupported sites")
		return nil, nil
	}}, &stubBrowser{}, Options{})

	_, err := eng.ScrapeListing(context.Background(), "https://unknown.example/s?q=mouse", "mouse", 1)
	assert.ErrorIs(t, err, ErrUnsupportedSite)
}

func TestScrapeListingWalksPages(t *testing.T) {
	page1 := `<html><body>` +
		card("Mouse A", "$10") +
		card("Mouse B", "$12") +
		card("", "") + // no title, no price: dropped
		card("Mouse C", "$14") +
		`</body></html>`
	page2 := `<html><body>` +
		card("Mouse D", "$16") +
		card("Mouse E", "") +
		`</body></html>`

	listing := &stubListing{pages: []*fetch.Result{
		resultFromHTML(t, fetch.TierBrowser, "https://shop.example/s?q=mouse", page1),
		resultFromHTML(t, fetch.TierBrowser, "https://shop.example/s?q=mouse&page=2", page2),
	}}
	eng := newTestEngine(t, &stubStatic{fn: func(string) (*fetch.Result, error) {
		return nil, fetch.ErrFetchFailed
	}}, &stubBrowser{listing: listing}, Options{Workers: 3})

	records, err := eng.ScrapeListing(context.Background(), "https://shop.example", "mouse", 5)
	require.NoError(t, err)

	require.Len(t, records, 5)
	assert.Equal(t, "Mouse A", records[0].Title)
	assert.Equal(t, "Mouse E", records[4].Title)
	assert.True(t, listing.closed)
}

func TestScrapeListingRespectsMaxPages(t *testing.T) {
	pages := make([]*fetch.Result, 4)
	for i := range pages {
		pages[i] = resultFromHTML(t, fetch.TierBrowser, "https://shop.example/s", `<html><body>`+card("Item", "$1")+`</body></html>`)
	}
	listing := &stubListing{pages: pages}
	eng := newTestEngine(t, &stubStatic{fn: func(string) (*fetch.Result, error) {
		return nil, fetch.ErrFetchFailed
	}}, &stubBrowser{listing: listing}, Options{})

	records, err := eng.ScrapeListing(context.Background(), "https://shop.example", "item", 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 1, listing.current)
}

func TestScrapeListingDefaultsToConfiguredMaxPages(t *testing.T) {
	pages := make([]*fetch.Result, 5)
	for i := range pages {
		pages[i] = resultFromHTML(t, fetch.TierBrowser, "https://shop.example/s", `<html><body>`+card("Item", "$1")+`</body></html>`)
	}
	listing := &stubListing{pages: pages}
	eng := newTestEngine(t, &stubStatic{fn: func(string) (*fetch.Result, error) {
		return nil, fetch.ErrFetchFailed
	}}, &stubBrowser{listing: listing}, Options{MaxPages: 3})

	// page count 0 falls back to the configured cap
	records, err := eng.ScrapeListing(context.Background(), "https://shop.example", "item", 0)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, 2, listing.current)
}

func TestScrapeListingStaticShortcut(t *testing.T) {
	html := `<html><body>` + card("Lamp", "$9") + `</body></html>`
	static := &stubStatic{fn: func(url string) (*fetch.Result, error) {
		return resultFromHTML(t, fetch.TierStatic, url, html), nil
	}}
	browser := &stubBrowser{}
	eng := newTestEngine(t, static, browser, Options{})

	records, err := eng.ScrapeListing(context.Background(), "https://shop.example/deals", "", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Lamp", records[0].Title)
	assert.Equal(t, int64(1), atomic.LoadInt64(&static.calls))
}

func TestScrapeSingleProductStaticTier(t *testing.T) {
	html := `<html><body><h1 class="pt">Keyboard</h1><span class="pp">$49.99</span></body></html>`
	static := &stubStatic{fn: func(url string) (*fetch.Result, error) {
		return resultFromHTML(t, fetch.TierStatic, url, html), nil
	}}
	browser := &stubBrowser{}
	eng := newTestEngine(t, static, browser, Options{})

	rec, err := eng.ScrapeSingleProduct(context.Background(), "https://shop.example/p/1")
	require.NoError(t, err)
	assert.Equal(t, "Keyboard", rec.Title)
	assert.Equal(t, "$49.99", rec.Price)
	assert.Equal(t, int64(0), atomic.LoadInt64(&browser.productCalls))
}

func TestScrapeSingleProductCachesWithinWindow(t *testing.T) {
	clock := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	html := `<html><body><h1 class="pt">Keyboard</h1><span class="pp">$49.99</span></body></html>`
	static := &stubStatic{fn: func(url string) (*fetch.Result, error) {
		return resultFromHTML(t, fetch.TierStatic, url, html), nil
	}}
	eng := newTestEngine(t, static, &stubBrowser{}, Options{
		CacheWindow: time.Hour,
		Now:         func() time.Time { return clock },
	})

	for i := 0; i < 3; i++ {
		_, err := eng.ScrapeSingleProduct(context.Background(), "https://shop.example/p/1")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&static.calls))

	clock = clock.Add(2 * time.Hour)
	_, err := eng.ScrapeSingleProduct(context.Background(), "https://shop.example/p/1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&static.calls))
}

func TestScrapeSingleProductFallsBackToBrowser(t *testing.T) {
	// static tier renders without the script-injected price
	staticHTML := `<html><body><h1 class="pt">Headphones</h1></body></html>`
	browserHTML := `<html><body><h1 class="pt">Headphones</h1><span class="pp">₹2,999</span></body></html>`

	static := &stubStatic{fn: func(url string) (*fetch.Result, error) {
		return resultFromHTML(t, fetch.TierStatic, url, staticHTML), nil
	}}
	browser := &stubBrowser{productFn: func(url string) (*fetch.Result, error) {
		return resultFromHTML(t, fetch.TierBrowser, url, browserHTML), nil
	}}
	eng := newTestEngine(t, static, browser, Options{})

	rec, err := eng.ScrapeSingleProduct(context.Background(), "https://shop.example/p/2")
	require.NoError(t, err)
	assert.Equal(t, "₹2,999", rec.Price)
	assert.Equal(t, int64(1), atomic.LoadInt64(&browser.productCalls))
}

func TestScrapeSingleProductKeepsPartialStaticRecord(t *testing.T) {
	staticHTML := `<html><body><h1 class="pt">Headphones</h1></body></html>`

	static := &stubStatic{fn: func(url string) (*fetch.Result, error) {
		return resultFromHTML(t, fetch.TierStatic, url, staticHTML), nil
	}}
	browser := &stubBrowser{} // browser tier fails outright
	eng := newTestEngine(t, static, browser, Options{})

	rec, err := eng.ScrapeSingleProduct(context.Background(), "https://shop.example/p/3")
	require.NoError(t, err)
	assert.Equal(t, "Headphones", rec.Title)
	assert.Empty(t, rec.Price)
}

func TestScrapeSingleProductNotFound(t *testing.T) {
	static := &stubStatic{fn: func(url string) (*fetch.Result, error) {
		return resultFromHTML(t, fetch.TierStatic, url, `<html><body></body></html>`), nil
	}}
	eng := newTestEngine(t, static, &stubBrowser{}, Options{})

	_, err := eng.ScrapeSingleProduct(context.Background(), "https://shop.example/p/4")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestScrapeSingleProductDoesNotCacheFailures(t *testing.T) {
	static := &stubStatic{fn: func(url string) (*fetch.Result, error) {
		return resultFromHTML(t, fetch.TierStatic, url, `<html><body></body></html>`), nil
	}}
	eng := newTestEngine(t, static, &stubBrowser{}, Options{})

	_, err := eng.ScrapeSingleProduct(context.Background(), "https://shop.example/p/5")
	require.ErrorIs(t, err, ErrProductNotFound)
	_, err = eng.ScrapeSingleProduct(context.Background(), "https://shop.example/p/5")
	require.ErrorIs(t, err, ErrProductNotFound)

	assert.Equal(t, int64(2), atomic.LoadInt64(&static.calls))
}

func TestRefreshBatch(t *testing.T) {
	html := `<html><body><h1 class="pt">Item</h1><span class="pp">$5</span></body></html>`
	static := &stubStatic{fn: func(url string) (*fetch.Result, error) {
		return resultFromHTML(t, fetch.TierStatic, url, html), nil
	}}
	eng := newTestEngine(t, static, &stubBrowser{}, Options{Workers: 4})

	urls := []string{
		"https://shop.example/p/1",
		"https://unknown.example/p/2",
		"https://shop.example/p/3",
	}
	results := eng.RefreshBatch(context.Background(), urls)

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "Item", results[0].Record.Title)
	assert.ErrorIs(t, results[1].Err, ErrUnsupportedSite)
	assert.NoError(t, results[2].Err)

	// order matches the input regardless of worker scheduling
	assert.Equal(t, urls[1], results[1].URL)
}

func TestShutdownClosesBrowser(t *testing.T) {
	browser := &stubBrowser{}
	eng := newTestEngine(t, &stubStatic{fn: func(string) (*fetch.Result, error) {
		return nil, fetch.ErrFetchFailed
	}}, browser, Options{})

	require.NoError(t, eng.Shutdown())
	assert.True(t, browser.closed)
}
