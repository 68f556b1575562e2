// Package startup handles application initialization, configuration loading,
// the single-instance lock, and startup/shutdown logging.
//
// # Configuration
//
// Configuration is resolved by [LoadConfig] from a viper instance built by
// [NewViper]. Precedence, highest first: command-line flags bound by the
// caller, GIFFER_* environment variables, config.yaml in the data
// directory, then defaults:
//
//   - data_dir: ~/Documents/GIFfer
//   - library_dir: <data_dir>/gifs
//   - tags_file: <data_dir>/tags.json
//   - store_backend: json, or sqlite for <data_dir>/tags.db
//   - intake_dir: empty (disabled)
//   - extensions: .gif
//   - quiescence: 1500ms; intake_quiescence: 2s; search_debounce: 300ms
//   - port: 7373; metrics_enabled: false; metrics_port: 9393
//   - log_file: empty; log_health_checks / log_media_requests: false
//   - thumbnail_cache_size: 256
//
// LoadConfig has no side effects on the filesystem. [PrepareDirectories]
// creates the data, library and intake directories and is called only
// after [AcquireLock] succeeds.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//
//	go build -ldflags "-X giffer/internal/startup.Version=1.2.0 -X giffer/internal/startup.Commit=$(git rev-parse --short HEAD)"
package startup
