package engine

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pricescout/pricescout/internal/extract"
)

// productCache memoizes single-product records. The key embeds a coarse time
// bucket, so entries expire by becoming unreachable when the wall clock rolls
// into the next bucket, with no eviction pass needed. The size-bounded LRU reclaims
// stale buckets opportunistically. Reads and writes are safe under concurrent
// pool workers; a duplicated fetch on a racing miss is harmless because
// results are idempotent.
type productCache struct {
	window  time.Duration
	now     func() time.Time
	entries *lru.Cache[string, extract.Record]
}

func newProductCache(size int, window time.Duration, now func() time.Time) (*productCache, error) {
	if size <= 0 {
		size = 256
	}
	if window <= 0 {
		window = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	entries, err := lru.New[string, extract.Record](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &productCache{window: window, now: now, entries: entries}, nil
}

func (c *productCache) key(url string) string {
	bucket := c.now().Unix() / int64(c.window.Seconds())
	return fmt.Sprintf("%s|%d", url, bucket)
}

func (c *productCache) get(url string) (extract.Record, bool) {
	return c.entries.Get(c.key(url))
}

func (c *productCache) put(url string, rec extract.Record) {
	c.entries.Add(c.key(url), rec)
}
