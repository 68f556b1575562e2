// Package main provides the entry point for GIFfer.
//
// GIFfer is a single-user desktop tool for tagging a local GIF collection. It
// watches a library directory, keeps a filename -> tags index in sync with
// what is on disk, and serves a gallery on 127.0.0.1 that receives index
// changes over a WebSocket as they happen.
//
// # Application Lifecycle
//
//  1. Configuration Loading: flags, GIFFER_* environment variables and
//     <data_dir>/config.yaml are merged by viper and validated
//  2. Instance Lock: a flock on <data_dir>/giffer.lock. When another instance
//     holds it, a file given on the command line is copied into the shared
//     library and the process exits
//  3. Store Initialization: the tag index is loaded from tags.json or SQLite.
//     An unreadable index becomes a warning shown to every gallery session
//  4. Component Initialization:
//     - Reconciler: the only writer of the index, serializing watcher events
//       and API edits
//     - Library Watcher: fsnotify with a per-file quiescence window
//     - Startup Scan: adds files created and drops files removed while
//       GIFfer was not running
//     - Intake (optional): moves finished files from intake_dir into the library
//     - Thumbnail Warm-up: renders thumbnails for indexed files in the background
//  5. HTTP Server Setup: routes, logging, compression and metrics middleware
//  6. Graceful Shutdown: SIGINT/SIGTERM close gallery sessions, then stop the
//     servers
//
// # Commands
//
//	giffer [file]            run the gallery, optionally adding file first
//	giffer add <file>        copy a file into the library
//	giffer search <term>     filter the index from the terminal
//	giffer version           print build information
//
// # Related Packages
//
//   - [giffer/internal/tagstore]: tag index and its JSON persister
//   - [giffer/internal/database]: SQLite persister
//   - [giffer/internal/reconciler]: serialized index mutations
//   - [giffer/internal/watcher]: stabilized filesystem events
//   - [giffer/internal/handlers]: HTTP and WebSocket handlers
//   - [giffer/internal/startup]: configuration and initialization logging
package main
