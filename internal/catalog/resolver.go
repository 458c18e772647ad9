package catalog

import (
	"net/url"
	"sort"
	"strings"
)

// Resolver maps a URL to the site identifier whose host fragment matches its
// hostname. Resolution is total: every URL yields either a known site id or
// ok=false, and callers must treat ok=false as terminal (no fetch attempted).
type Resolver struct {
	// ordered for deterministic resolution when fragments overlap
	fragments []hostFragment
}

type hostFragment struct {
	fragment string
	siteID   string
}

// NewResolver builds a resolver from the host lists declared in the catalog.
func NewResolver(c *Catalog) *Resolver {
	var fragments []hostFragment
	for id, set := range c.sites {
		for _, h := range set.Hosts {
			fragments = append(fragments, hostFragment{fragment: strings.ToLower(h), siteID: id})
		}
	}
	sort.Slice(fragments, func(i, j int) bool {
		if fragments[i].fragment != fragments[j].fragment {
			return fragments[i].fragment < fragments[j].fragment
		}
		return fragments[i].siteID < fragments[j].siteID
	})
	return &Resolver{fragments: fragments}
}

// Resolve returns the site identifier for rawURL, or ok=false when no catalog
// entry claims its host. A substring match on the hostname is sufficient:
// "www.amazon.in" and "amazon.de" both resolve to the amazon entry.
func (r *Resolver) Resolve(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		// tolerate bare "amazon.in/dp/..." inputs without a scheme
		host = strings.ToLower(strings.SplitN(rawURL, "/", 2)[0])
	}

	for _, f := range r.fragments {
		if strings.Contains(host, f.fragment) {
			return f.siteID, true
		}
	}
	return "", false
}
