package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var ErrSiteUnsupported = errors.New("site not present in selector catalog")

// SelectorSet holds the locators needed to extract product records on one site.
// Locators are opaque to the catalog; the fetch strategies interpret them as CSS
// selectors. Container, Title and Price are mandatory for a site to be usable;
// everything else degrades gracefully when absent.
type SelectorSet struct {
	Hosts []string `json:"hosts"`

	Container string `json:"container"`
	Title     string `json:"title"`
	Price     string `json:"price"`
	Rating    string `json:"rating,omitempty"`
	URL       string `json:"url,omitempty"`

	SearchBox string `json:"search_box,omitempty"`
	NextPage  string `json:"next_page,omitempty"`

	// Locators for single-product detail pages, which usually differ from the
	// search-result card markup on the same site.
	ProductTitle  string `json:"product_title,omitempty"`
	ProductPrice  string `json:"product_price,omitempty"`
	ProductRating string `json:"product_rating,omitempty"`
}

// Catalog maps site identifiers to their selector sets. It is loaded once at
// startup and read-only afterwards, so lookups need no locking.
type Catalog struct {
	sites map[string]SelectorSet
}

// Load reads a selector catalog from a JSON file keyed by site identifier.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	var sites map[string]SelectorSet
	if err := json.Unmarshal(data, &sites); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog from %s: %w", path, err)
	}

	return New(sites)
}

// New builds a catalog from an in-memory site map, validating that every entry
// carries the mandatory locators.
func New(sites map[string]SelectorSet) (*Catalog, error) {
	for id, set := range sites {
		if set.Container == "" || set.Title == "" || set.Price == "" {
			return nil, fmt.Errorf("catalog entry %q missing container/title/price locators", id)
		}
	}
	return &Catalog{sites: sites}, nil
}

// Default returns the built-in catalog covering the sites shipped with the
// binary. Deployments can override it with an external JSON file.
func Default() *Catalog {
	c, err := New(defaultSites())
	if err != nil {
		// defaultSites is a compile-time constant table; a validation failure
		// here is a programming error.
		panic(err)
	}
	return c
}

// Get returns the selector set for a site identifier.
func (c *Catalog) Get(siteID string) (SelectorSet, error) {
	set, ok := c.sites[siteID]
	if !ok {
		return SelectorSet{}, fmt.Errorf("%w: %s", ErrSiteUnsupported, siteID)
	}
	return set, nil
}

// Sites returns all known site identifiers.
func (c *Catalog) Sites() []string {
	ids := make([]string, 0, len(c.sites))
	for id := range c.sites {
		ids = append(ids, id)
	}
	return ids
}

func defaultSites() map[string]SelectorSet {
	return map[string]SelectorSet{
		"amazon": {
			Hosts:     []string{"amazon"},
			Container: "div[data-component-type='s-search-result']",
			Title:     "h2 a span",
			Price:     ".a-price .a-offscreen",
			Rating:    ".a-icon-alt",
			URL:       "h2 a",
			SearchBox: "#twotabsearchtextbox",
			NextPage:  ".s-pagination-next:not(.s-pagination-disabled)",

			ProductTitle:  "#productTitle",
			ProductPrice:  ".a-price .a-offscreen",
			ProductRating: "#acrPopover .a-icon-alt",
		},
		"flipkart": {
			Hosts:     []string{"flipkart"},
			Container: "div[data-id]",
			Title:     "div.KzDlHZ, a.wjcEIp",
			Price:     "div.Nx9bqj",
			Rating:    "div.XQDdHH",
			URL:       "a[href*='/p/']",
			SearchBox: "input[name='q']",
			NextPage:  "a.cn\\+\\+Ap",

			ProductTitle:  "span.VU-ZEz",
			ProductPrice:  "div.Nx9bqj.CxhGGd",
			ProductRating: "div.XQDdHH",
		},
	}
}
