// Package handlers provides the HTTP and WebSocket surface of giffer.
//
// It includes handlers for:
//   - The tag index snapshot, tag edits and file deletion
//   - Substring search over tags, both one-shot and debounced over WebSocket
//   - Raw library files and JPEG thumbnails
//   - File-drop ingest into the library
//   - Health checks and build information
//
// Every mutation goes through the reconciler and is answered with its
// reconciler.Result, mapped to an HTTP status by resultStatus.
package handlers
