package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TilesRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_requests_total",
		Help: "Total number of tile resolutions requested by the viewer",
	})

	TilesCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_cache_hits_total",
		Help: "Total number of in-memory tile cache hits",
	})

	TilesCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_cache_misses_total",
		Help: "Total number of in-memory tile cache misses",
	})

	TilesCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_cache_evictions_total",
		Help: "Total number of tiles evicted from the in-memory cache",
	})

	TilesCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tiles_cache_size",
		Help: "Number of decoded tiles currently held in memory",
	})

	TilesStoreHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_store_hits_total",
		Help: "Total number of persistent store hits",
	})

	TilesStoreMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_store_misses_total",
		Help: "Total number of persistent store misses",
	})

	TilesStoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiles_store_errors_total",
		Help: "Total number of persistent store errors",
	}, []string{"operation"})

	TilesUpstreamRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_upstream_requests_total",
		Help: "Total number of tile server requests",
	})

	TilesUpstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiles_upstream_failures_total",
		Help: "Total number of failed tile server requests by outcome",
	}, []string{"kind"})

	TilesUpstreamLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tiles_upstream_latency_seconds",
		Help:    "Latency of tile server fetches in seconds",
		Buckets: prometheus.DefBuckets,
	})

	FetchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tiles_fetch_queue_depth",
		Help: "Number of tile tasks waiting for a worker",
	})

	RenderResultsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_render_results_applied_total",
		Help: "Total number of fetched tiles applied to the grid",
	})

	RenderResultsStale = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_render_results_stale_total",
		Help: "Total number of fetched tiles discarded as stale",
	})

	PrefetchRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiles_prefetch_requests_total",
		Help: "Total number of tiles requested by the pre-fetch scheduler",
	})

	GeocodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geocode_requests_total",
		Help: "Total number of geocoding requests by result",
	}, []string{"result"})

	OfflineTiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_tiles_total",
		Help: "Total number of tiles handled by the offline loader by outcome",
	}, []string{"outcome"})

	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Duration of redis tile store operations in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)
