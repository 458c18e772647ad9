package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricescout/pricescout/internal/extract"
)

func TestProductCacheBuckets(t *testing.T) {
	clock := time.Date(2025, 6, 1, 10, 5, 0, 0, time.UTC)
	cache, err := newProductCache(16, time.Hour, func() time.Time { return clock })
	require.NoError(t, err)

	rec := extract.Record{Title: "Mouse", Price: "$24.99"}
	cache.put("https://shop.example/p/1", rec)

	got, hit := cache.get("https://shop.example/p/1")
	require.True(t, hit)
	assert.Equal(t, rec, got)

	// still inside the same bucket
	clock = clock.Add(40 * time.Minute)
	_, hit = cache.get("https://shop.example/p/1")
	assert.True(t, hit)

	// crossing the bucket boundary makes the entry unreachable
	clock = clock.Add(30 * time.Minute)
	_, hit = cache.get("https://shop.example/p/1")
	assert.False(t, hit)
}

func TestProductCacheKeysAreURLScoped(t *testing.T) {
	cache, err := newProductCache(16, time.Hour, nil)
	require.NoError(t, err)

	cache.put("https://shop.example/p/1", extract.Record{Title: "Mouse"})

	_, hit := cache.get("https://shop.example/p/2")
	assert.False(t, hit)
}

func TestProductCacheBoundsSize(t *testing.T) {
	cache, err := newProductCache(2, time.Hour, nil)
	require.NoError(t, err)

	cache.put("a", extract.Record{Title: "A"})
	cache.put("b", extract.Record{Title: "B"})
	cache.put("c", extract.Record{Title: "C"})

	_, hitA := cache.get("a")
	_, hitC := cache.get("c")
	assert.False(t, hitA)
	assert.True(t, hitC)
}
