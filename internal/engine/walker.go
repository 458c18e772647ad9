package engine

import (
	"context"
	"fmt"

	"github.com/pricescout/pricescout/internal/catalog"
	"github.com/pricescout/pricescout/internal/extract"
	"github.com/pricescout/pricescout/internal/fetch"
)

// walkListing paginates a live search-results session up to maxPages,
// extracting every page's containers through the bounded worker pool. Pages
// are fetched and consumed once; there is no rewind. A missing next-page
// control, a failed activation, or a refresh wait that times out all end the
// walk normally with whatever was collected so far.
func (e *Engine) walkListing(ctx context.Context, siteURL, query string, set catalog.SelectorSet, maxPages int) ([]extract.Record, error) {
	session, err := e.browser.OpenListing(ctx, siteURL, query, set)
	if err != nil {
		e.metrics.incFetchError(string(fetch.TierBrowser))
		return nil, fmt.Errorf("failed to open listing: %w", err)
	}
	defer session.Close()

	var records []extract.Record
	for page := 1; page <= maxPages; page++ {
		res, err := session.Document()
		if err != nil {
			// a broken snapshot mid-walk degrades to the records we have
			e.logger.Warn("listing snapshot failed", "page", page, "error", err)
			break
		}
		e.metrics.incPage(string(res.Tier))

		pageRecords := e.extractPage(res, set)
		e.logger.Info("extracted listing page", "page", page, "records", len(pageRecords))
		records = append(records, pageRecords...)

		if page == maxPages {
			break
		}
		advanced, err := session.NextPage(ctx)
		if err != nil {
			e.logger.Warn("pagination stopped", "page", page, "error", err)
			break
		}
		if !advanced {
			break
		}
	}

	return records, nil
}

// extractPage fans the page's containers out to the worker pool and keeps the
// usable records in container order. One container's extraction failure never
// touches its siblings; its slot is simply dropped.
func (e *Engine) extractPage(res *fetch.Result, set catalog.SelectorSet) []extract.Record {
	containers := res.Containers(set.Container)
	if len(containers) == 0 {
		return nil
	}

	results := make([]extract.Record, len(containers))
	runBounded(e.workers, len(containers), func(i int) {
		results[i] = extract.Product(containers[i], set, res.URL)
	})

	kept := make([]extract.Record, 0, len(results))
	dropped := 0
	for _, rec := range results {
		if rec.Usable() {
			kept = append(kept, rec)
		} else {
			dropped++
		}
	}
	e.metrics.incRecords(len(kept))
	e.metrics.incDropped(dropped)
	return kept
}
