// Package metrics provides Prometheus instrumentation for giffer.
//
// All metrics are registered on the default registry with promauto and are
// prefixed with "giffer_". Exposure is opt-in (metrics_enabled) because giffer
// normally runs as a desktop tool; when enabled, NewServer serves /metrics on
// the loopback interface.
//
// # Metric Categories
//
//   - HTTP: request counts, durations and connected WebSocket sessions
//   - Store: tracked entries, persist attempts/durations, load outcomes
//   - Watcher: raw fsnotify events, stabilized emissions, pending files, intake moves
//   - Reconciler: transitions by input and result, queue depth, apply duration
//   - Search: filter evaluation time and inputs discarded by debouncing
//   - Thumbnail: generations, cache hits/misses, cache size
//   - Filesystem: operation durations/errors and stale-handle retries, recorded
//     through the filesystem.Observer implemented in observer.go
//
// InitializeMetrics pre-populates label combinations so dashboards see zero
// values before the first event.
package metrics
