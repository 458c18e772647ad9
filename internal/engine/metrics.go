package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the extraction engine.
type Metrics struct {
	Registry         *prometheus.Registry
	PagesFetched     *prometheus.CounterVec
	RecordsExtracted prometheus.Counter
	RecordsDropped   prometheus.Counter
	FetchErrors      *prometheus.CounterVec
	TierFallbacks    prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
}

// NewMetrics constructs and registers all collectors on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_pages_fetched_total",
			Help: "Pages fetched, by strategy tier.",
		},
		[]string{"tier"},
	)
	records := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_records_extracted_total",
			Help: "Product records extracted and kept.",
		},
	)
	dropped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_records_dropped_total",
			Help: "Containers dropped because both title and price were missing.",
		},
	)
	fetchErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_fetch_errors_total",
			Help: "Fetch failures, by strategy tier.",
		},
		[]string{"tier"},
	)
	fallbacks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_tier_fallbacks_total",
			Help: "Single-product lookups that fell back to the browser tier.",
		},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_cache_hits_total",
			Help: "Single-product cache hits.",
		},
	)
	cacheMisses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_cache_misses_total",
			Help: "Single-product cache misses.",
		},
	)

	registry.MustRegister(pages, records, dropped, fetchErrors, fallbacks, cacheHits, cacheMisses)

	return &Metrics{
		Registry:         registry,
		PagesFetched:     pages,
		RecordsExtracted: records,
		RecordsDropped:   dropped,
		FetchErrors:      fetchErrors,
		TierFallbacks:    fallbacks,
		CacheHits:        cacheHits,
		CacheMisses:      cacheMisses,
	}
}

func (m *Metrics) incPage(tier string) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(tier).Inc()
}

func (m *Metrics) incRecords(n int) {
	if m == nil {
		return
	}
	m.RecordsExtracted.Add(float64(n))
}

func (m *Metrics) incDropped(n int) {
	if m == nil {
		return
	}
	m.RecordsDropped.Add(float64(n))
}

func (m *Metrics) incFetchError(tier string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(tier).Inc()
}

func (m *Metrics) incFallback() {
	if m == nil {
		return
	}
	m.TierFallbacks.Inc()
}

func (m *Metrics) incCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}
