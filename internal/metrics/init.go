package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(storeBackend string) {
	for _, status := range []string{"success", "error"} {
		StorePersistTotal.WithLabelValues(storeBackend, status)
		IntakeMovesTotal.WithLabelValues(status)
		ThumbnailGenerationsTotal.WithLabelValues(status)
	}
	StorePersistTotal.WithLabelValues(storeBackend, "held")
	StorePersistDuration.WithLabelValues(storeBackend)
	for _, status := range []string{"success", "missing", "corrupt", "error"} {
		StoreLoadTotal.WithLabelValues(storeBackend, status)
	}

	for _, w := range []string{"library", "intake"} {
		for _, ev := range []string{"create", "write", "remove", "rename", "chmod"} {
			WatcherEventsTotal.WithLabelValues(w, ev)
		}
		for _, ev := range []string{"added", "removed", "modified"} {
			WatcherEmittedTotal.WithLabelValues(w, ev)
		}
		WatcherErrors.WithLabelValues(w)
		WatcherPending.WithLabelValues(w)
	}

	inputs := []string{"added", "removed", "modified", "set_tags", "delete"}
	results := []string{"applied", "noop", "validation", "not_found", "persistence", "filesystem", "internal"}
	for _, in := range inputs {
		ReconcilerApplyDuration.WithLabelValues(in)
		for _, res := range results {
			ReconcilerTransitionsTotal.WithLabelValues(in, res)
		}
	}

	volumes := []string{"library", "intake", "data", "unknown"}
	fsOps := []string{"stat", "open", "readdir", "remove", "copy", "rename"}
	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}
}
