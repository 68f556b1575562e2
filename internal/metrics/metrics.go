package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "giffer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WebSocketSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "giffer_websocket_sessions",
			Help: "Number of connected gallery WebSocket sessions",
		},
	)
)

// Tag store metrics
var (
	StoreEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "giffer_store_entries",
			Help: "Number of files tracked in the tag store",
		},
	)

	StorePersistTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffer_store_persist_total",
			Help: "Total number of tag store persist attempts",
		},
		[]string{"backend", "status"},
	)

	StorePersistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "giffer_store_persist_duration_seconds",
			Help:    "Tag store persist duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"backend"},
	)

	StoreLoadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffer_store_load_total",
			Help: "Total number of tag store loads by outcome",
		},
		[]string{"backend", "status"},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffer_watcher_events_total",
			Help: "Total number of raw filesystem watcher events",
		},
		[]string{"watcher", "event_type"},
	)

	WatcherEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffer_watcher_emitted_total",
			Help: "Total number of stabilized file events emitted",
		},
		[]string{"watcher", "event_type"},
	)

	WatcherErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffer_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
		[]string{"watcher"},
	)

	WatcherPending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "giffer_watcher_pending_files",
			Help: "Number of files waiting for their quiescence window",
		},
		[]string{"watcher"},
	)

	IntakeMovesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffer_intake_moves_total",
			Help: "Total number of files moved from the intake directory into the library",
		},
		[]string{"status"},
	)
)

// Reconciler metrics
var (
	ReconcilerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffer_reconciler_transitions_total",
			Help: "Total number of reconciler inputs by type and outcome",
		},
		[]string{"input", "result"},
	)

	ReconcilerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "giffer_reconciler_queue_depth",
			Help: "Number of reconciler operations waiting to be applied",
		},
	)

	ReconcilerApplyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "giffer_reconciler_apply_duration_seconds",
			Help:    "Time to apply one reconciler operation including persistence",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"input"},
	)

	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "giffer_notifications_superseded_total",
			Help: "Total number of undelivered notifications replaced by a newer one",
		},
	)
)

// Search metrics
var (
	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "giffer_search_duration_seconds",
			Help:    "Tag filter evaluation duration in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
	)

	SearchDebounced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "giffer_search_debounced_total",
			Help: "Total number of search inputs discarded by the debounce window",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffer_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "giffer_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "giffer_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail cache hits",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "giffer_thumbnail_cache_misses_total",
			Help: "Total number of thumbnail cache misses",
		},
	)

	ThumbnailCacheCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "giffer_thumbnail_cache_count",
			Help: "Number of thumbnails held in memory",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "giffer_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffer_filesystem_operation_errors_total",
			Help: "Total number of failed filesystem operations",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffer_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts after stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffer_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after a retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffer_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "giffer_filesystem_stale_errors_total",
			Help: "Total number of stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// App info
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "giffer_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version"},
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
