package tagstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"giffer/internal/logging"
)

// FilePersister stores the tag index as a UTF-8 JSON document with two-space
// indentation. Every save rewrites the whole document through a temp file and
// rename.
type FilePersister struct {
	path string
	now  func() time.Time
}

// NewFilePersister returns a persister for the document at path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path, now: time.Now}
}

// Path returns the document location.
func (p *FilePersister) Path() string { return p.path }

// Backend returns "json".
func (p *FilePersister) Backend() string { return "json" }

// Load reads and parses the document. When parsing fails the original bytes
// are copied to <path>.corrupt-<timestamp> and left in place; the returned
// error wraps ErrCorruptState, and also ErrBackedUp once the copy exists.
func (p *FilePersister) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, err
		}
		return Snapshot{}, fmt.Errorf("%w: read %s: %w", ErrPersistence, p.path, err)
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		backup := fmt.Sprintf("%s.corrupt-%s", p.path, p.now().Format("20060102-150405"))
		if werr := os.WriteFile(backup, data, 0o644); werr != nil {
			logging.Error("Failed to back up corrupt tag store %s: %v", p.path, werr)
			return Snapshot{}, err
		}
		logging.Warn("Tag store %s is corrupt, original backed up to %s", p.path, backup)
		return Snapshot{}, fmt.Errorf("%w: %w to %s", err, ErrBackedUp, backup)
	}
	return snap, nil
}

// Save writes snap atomically.
func (p *FilePersister) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersistence, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrPersistence, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrPersistence, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: sync %s: %w", ErrPersistence, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %w", ErrPersistence, tmpName, err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replace %s: %w", ErrPersistence, p.path, err)
	}
	return nil
}
