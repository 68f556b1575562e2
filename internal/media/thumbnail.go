package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"os"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"giffer/internal/logging"
	"giffer/internal/metrics"
)

const (
	// ThumbnailSize is the bounding box thumbnails are fitted into.
	ThumbnailSize = 200

	// DefaultCacheSize is the number of thumbnails kept in memory.
	DefaultCacheSize = 256
)

// ErrUnsupported is returned for files that are not a decodable image.
var ErrUnsupported = errors.New("unsupported image")

// Source resolves library file names. filesystem.Library satisfies it.
type Source interface {
	Path(name string) (string, error)
	Stat(name string) (os.FileInfo, error)
}

// ThumbnailGenerator renders JPEG thumbnails of the first frame of library
// images and keeps recent ones in an in-memory LRU. Entries are keyed by
// name, size and modification time, so a replaced file gets a fresh
// thumbnail without explicit invalidation.
type ThumbnailGenerator struct {
	src   Source
	cache *lru.Cache[string, []byte]
	group singleflight.Group
}

// NewThumbnailGenerator creates a generator caching up to size thumbnails.
func NewThumbnailGenerator(src Source, size int) (*ThumbnailGenerator, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.NewWithEvict(size, func(string, []byte) {
		metrics.ThumbnailCacheCount.Dec()
	})
	if err != nil {
		return nil, fmt.Errorf("create thumbnail cache: %w", err)
	}
	logging.Debug("ThumbnailGenerator: cache size %d", size)
	return &ThumbnailGenerator{src: src, cache: cache}, nil
}

// GetThumbnail returns the JPEG thumbnail for name.
func (t *ThumbnailGenerator) GetThumbnail(name string) ([]byte, error) {
	info, err := t.src.Stat(name)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrUnsupported, name)
	}

	key := fmt.Sprintf("%s|%d|%d", name, info.Size(), info.ModTime().UnixNano())
	if data, ok := t.cache.Get(key); ok {
		metrics.ThumbnailCacheHits.Inc()
		return data, nil
	}
	metrics.ThumbnailCacheMisses.Inc()

	v, err, _ := t.group.Do(key, func() (any, error) {
		data, err := t.generate(name)
		if err != nil {
			return nil, err
		}
		if !t.cache.Contains(key) {
			t.cache.Add(key, data)
			metrics.ThumbnailCacheCount.Inc()
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (t *ThumbnailGenerator) generate(name string) (data []byte, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.ThumbnailGenerationsTotal.WithLabelValues(status).Inc()
		metrics.ThumbnailGenerationDuration.Observe(time.Since(start).Seconds())
	}()

	path, err := t.src.Path(name)
	if err != nil {
		return nil, err
	}

	logging.Debug("Thumbnail generating: %s", name)
	img, err := LoadImageConstrained(path, MaxImageDimension, MaxImagePixels)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsupported, name, err)
	}

	thumb := imaging.Fit(img, ThumbnailSize, ThumbnailSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// Warm renders thumbnails for names with at most workers generations in
// flight and returns how many succeeded. Failures are skipped; cancelling
// ctx stops scheduling further work.
func (t *ThumbnailGenerator) Warm(ctx context.Context, names []string, workers int) int {
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)

	var warmed atomic.Int64
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if _, err := t.GetThumbnail(name); err != nil {
				logging.Debug("Thumbnail warm-up skipped %s: %v", name, err)
				return nil
			}
			warmed.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(warmed.Load())
}

// Len returns the number of cached thumbnails.
func (t *ThumbnailGenerator) Len() int {
	return t.cache.Len()
}
