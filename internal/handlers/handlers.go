package handlers

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"giffer/internal/notify"
	"giffer/internal/query"
	"giffer/internal/reconciler"
	"giffer/internal/tagstore"
)

const maxBodyBytes = 1 << 20

// TagService is the command surface of the reconciler.
type TagService interface {
	Snapshot() tagstore.Snapshot
	SetTags(ctx context.Context, name string, tags []string) reconciler.Result
	Delete(ctx context.Context, name string) reconciler.Result
	Warnings() []reconciler.Warning
}

// Library resolves and ingests library files.
type Library interface {
	Path(name string) (string, error)
	Stat(name string) (os.FileInfo, error)
	Ingest(src string) (string, error)
}

// Thumbnailer renders JPEG thumbnails.
type Thumbnailer interface {
	GetThumbnail(name string) ([]byte, error)
}

// Subscriber hands out notification streams.
type Subscriber interface {
	Subscribe() (<-chan notify.Event, func())
}

// Handlers serves the gallery API.
type Handlers struct {
	tags           TagService
	library        Library
	thumbs         Thumbnailer
	hub            Subscriber
	searchDebounce time.Duration
	startTime      time.Time
	ready          atomic.Bool
}

// New creates the handler set. A zero searchDebounce uses
// query.DefaultDebounce.
func New(tags TagService, library Library, thumbs Thumbnailer, hub Subscriber, searchDebounce time.Duration) *Handlers {
	if searchDebounce <= 0 {
		searchDebounce = query.DefaultDebounce
	}
	return &Handlers{
		tags:           tags,
		library:        library,
		thumbs:         thumbs,
		hub:            hub,
		searchDebounce: searchDebounce,
		startTime:      time.Now(),
	}
}

// SetReady marks the service ready once the startup scan has been applied.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}
