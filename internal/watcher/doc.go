/*
Package watcher turns raw fsnotify activity in one directory into stabilized
file events.

Every raw event for a matching file (re)arms a per-file timer. When the timer
fires the file is stat'ed; if its size or modification time moved since the
previous probe the timer is armed again, otherwise exactly one Event is
emitted:

  - FileRemoved if the file is gone
  - FileAdded if the burst contained a create (including a rename into the
    directory)
  - FileModified otherwise

A file deleted and recreated inside one window therefore yields a single
FileAdded. Events are handed to one emitter goroutine, so each file's events
leave in the order they settled and none are dropped when the consumer is
slow.

Scan produces the startup diff between the directory and the names already
in the tag index. Start the Watcher before scanning so files created during
the scan are not missed; the reconciler absorbs any duplicates.
*/
package watcher
