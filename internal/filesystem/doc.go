/*
Package filesystem owns giffer's access to the GIF library directory.

Library resolves base names to paths inside the library root, lists entries
that match the extension filter, and performs the side effects the reconciler
and intake watcher need: Remove, Ingest (copy, overwriting) and MoveIn
(rename, or copy then remove across devices). Copies land in a hidden
temporary file first and are renamed into place so watchers never see a
half-written GIF under its final name.

Failures of these side effects wrap ErrFileSystem; names that are not plain
base names, or that do not match the filter, wrap ErrInvalidName.

# Stale handles

Stat and Open go through StatWithRetry and OpenWithRetry, which retry ESTALE
(stale file handle) errors with exponential backoff. This keeps a library on a
network share usable across transient server hiccups:

	config := filesystem.DefaultRetryConfig() // 3 retries, 50ms to 500ms
	info, err := filesystem.StatWithRetry(path, config)

Only ESTALE triggers retries. All other errors return immediately.

# Metrics

Operations are reported to the Observer installed with SetObserver, labelled
by the volume VolumeResolver assigns to the path ("library", "intake",
"data"). The metrics package provides the Prometheus implementation.
*/
package filesystem
