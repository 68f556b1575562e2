package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"giffer/internal/logging"
	"giffer/internal/mediatypes"
)

var (
	// ErrFileSystem wraps failures of filesystem side effects (delete, copy,
	// move) so callers can classify them with errors.Is.
	ErrFileSystem = errors.New("filesystem error")

	// ErrInvalidName is returned for names that are not a plain base name or
	// that do not match the library's extension filter.
	ErrInvalidName = errors.New("invalid file name")
)

// Library is the directory that holds the GIF collection. All names passed to
// and returned from Library are base names relative to Root.
type Library struct {
	root   string
	filter mediatypes.Filter
	retry  RetryConfig
}

// NewLibrary creates the library directory if needed and returns a Library
// rooted at its absolute path.
func NewLibrary(root string, filter mediatypes.Filter) (*Library, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve library path: %w", ErrFileSystem, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create library directory: %w", ErrFileSystem, err)
	}
	return &Library{root: abs, filter: filter, retry: DefaultRetryConfig()}, nil
}

// Root returns the absolute library directory.
func (l *Library) Root() string { return l.root }

// Filter returns the extension filter applied to library entries.
func (l *Library) Filter() mediatypes.Filter { return l.filter }

// Path validates name and returns its absolute path inside the library.
func (l *Library) Path(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(l.root, name), nil
}

// Exists reports whether name is present as a regular file.
func (l *Library) Exists(name string) bool {
	info, err := l.Stat(name)
	return err == nil && info.Mode().IsRegular()
}

// Stat returns file info for name.
func (l *Library) Stat(name string) (os.FileInfo, error) {
	path, err := l.Path(name)
	if err != nil {
		return nil, err
	}
	return StatWithRetry(path, l.retry)
}

// Open opens name for reading.
func (l *Library) Open(name string) (*os.File, error) {
	path, err := l.Path(name)
	if err != nil {
		return nil, err
	}
	return OpenWithRetry(path, l.retry)
}

// List returns the sorted names of regular files in the library that match
// the filter. Subdirectories are not descended into.
func (l *Library) List(ctx context.Context) ([]string, error) {
	start := time.Now()
	entries, err := os.ReadDir(l.root)
	timed(l.volume(), "readdir", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: list library: %w", ErrFileSystem, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() || !l.filter.Match(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes name from disk. A file that is already gone is an error
// wrapping both ErrFileSystem and os.ErrNotExist.
func (l *Library) Remove(name string) error {
	path, err := l.Path(name)
	if err != nil {
		return err
	}

	start := time.Now()
	err = os.Remove(path)
	timed(l.volume(), "remove", start, err)
	if err != nil {
		return fmt.Errorf("%w: remove %s: %w", ErrFileSystem, name, err)
	}
	return nil
}

// Ingest copies src into the library under its base name, overwriting any
// existing file of that name. The source is left in place.
func (l *Library) Ingest(src string) (string, error) {
	name, err := l.acceptSource(src)
	if err != nil {
		return "", err
	}
	if err := l.copyIn(src, name); err != nil {
		return "", err
	}
	logging.Info("Ingested %s into library as %s", src, name)
	return name, nil
}

// MoveIn moves src into the library under its base name. A same-device rename
// is used when possible; otherwise the file is copied and the source removed.
func (l *Library) MoveIn(src string) (string, error) {
	name, err := l.acceptSource(src)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(l.root, name)

	start := time.Now()
	err = os.Rename(src, dst)
	timed(l.volume(), "rename", start, err)
	if err == nil {
		return name, nil
	}
	if !isCrossDevice(err) {
		return "", fmt.Errorf("%w: move %s: %w", ErrFileSystem, src, err)
	}

	if err := l.copyIn(src, name); err != nil {
		return "", err
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Copied %s into library but could not remove source: %v", src, err)
	}
	return name, nil
}

func (l *Library) acceptSource(src string) (string, error) {
	name := filepath.Base(src)
	if !l.filter.Match(name) {
		return "", fmt.Errorf("%w: %s is not a supported file type", ErrInvalidName, name)
	}
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %w", ErrFileSystem, src, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrInvalidName, src)
	}
	return name, nil
}

// copyIn writes src to a hidden temp file in the library and renames it into
// place, so watchers never observe a partially written entry under name.
func (l *Library) copyIn(src, name string) (err error) {
	start := time.Now()
	defer func() { timed(l.volume(), "copy", start, err) }()

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrFileSystem, src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(l.root, ".giffer-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrFileSystem, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: copy %s: %w", ErrFileSystem, src, err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %w", ErrFileSystem, tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrFileSystem, tmpName, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", ErrFileSystem, tmpName, err)
	}
	if err = os.Rename(tmpName, filepath.Join(l.root, name)); err != nil {
		return fmt.Errorf("%w: rename into place: %w", ErrFileSystem, err)
	}
	return nil
}

func (l *Library) volume() string {
	return l.retry.resolveVolume(l.root)
}

func isCrossDevice(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.EXDEV
}
