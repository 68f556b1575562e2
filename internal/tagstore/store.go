package tagstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"giffer/internal/logging"
	"giffer/internal/metrics"
)

// Persister reads and writes the durable form of the store. Load returns an
// error matching fs.ErrNotExist when nothing has been persisted yet, and an
// error wrapping ErrCorruptState when the stored document cannot be parsed.
type Persister interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// Store is the in-memory ordered mapping of filename to tags. Reads take a
// copy under a read lock; writes to the backing Persister happen outside
// that lock so snapshots never wait on I/O.
type Store struct {
	mu    sync.RWMutex
	order []string
	tags  map[string][]string

	persistMu sync.Mutex
	persister Persister
	backend   string

	// held blocks Persist after a load failure that left the stored
	// document unread and without a backup.
	held atomic.Bool
}

// New creates an empty store backed by p. Call Load to populate it.
func New(p Persister) *Store {
	return &Store{
		tags:      make(map[string][]string),
		persister: p,
		backend:   backendName(p),
	}
}

// Load replaces the in-memory state with the persisted document. A missing
// document leaves the store empty and returns nil. Any other failure also
// leaves the store empty and returns an error wrapping ErrCorruptState or
// ErrPersistence. Unless that error also wraps ErrBackedUp, Persist is held
// until AllowOverwrite so the unread document is not replaced.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.persister.Load(ctx)

	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		status = "missing"
		snap, err = Snapshot{}, nil
	case errors.Is(err, ErrCorruptState):
		status = "corrupt"
		snap = Snapshot{}
	default:
		status = "error"
		snap = Snapshot{}
		if !errors.Is(err, ErrPersistence) {
			err = fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}
	metrics.StoreLoadTotal.WithLabelValues(s.backend, status).Inc()

	s.held.Store(err != nil && !errors.Is(err, ErrBackedUp))
	s.replace(snap)
	if err == nil {
		logging.Info("Loaded %d tagged files from %s store", snap.Len(), s.backend)
	}
	return err
}

func (s *Store) replace(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = snap.Names()
	s.tags = make(map[string][]string, len(s.order))
	for _, e := range snap.entries {
		s.tags[e.Filename] = cloneTags(e.Tags)
	}
	metrics.StoreEntries.Set(float64(len(s.order)))
}

// Snapshot returns an immutable copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		entries: make([]Entry, len(s.order)),
		index:   make(map[string]int, len(s.order)),
	}
	for i, name := range s.order {
		snap.entries[i] = Entry{Filename: name, Tags: cloneTags(s.tags[name])}
		snap.index[name] = i
	}
	return snap
}

// Has reports whether filename is tracked.
func (s *Store) Has(filename string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tags[filename]
	return ok
}

// Len returns the number of tracked files.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Set replaces the tags for filename, creating the entry if absent. Tags
// are trimmed, blanks dropped and duplicates removed keeping the first
// occurrence. An empty result is rejected with ErrValidation. The cleaned
// tags are returned.
func (s *Store) Set(filename string, tags []string) ([]string, error) {
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrValidation)
	}
	cleaned := NormalizeTags(tags)
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: at least one non-blank tag is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tags[filename]; !ok {
		s.order = append(s.order, filename)
	}
	s.tags[filename] = cleaned
	metrics.StoreEntries.Set(float64(len(s.order)))
	return cloneTags(cleaned), nil
}

// Ensure tracks filename with no tags if it is not tracked yet. It reports
// whether an entry was created.
func (s *Store) Ensure(filename string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tags[filename]; ok {
		return false
	}
	s.order = append(s.order, filename)
	s.tags[filename] = []string{}
	metrics.StoreEntries.Set(float64(len(s.order)))
	return true
}

// Remove stops tracking filename. It reports whether an entry was removed.
func (s *Store) Remove(filename string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tags[filename]; !ok {
		return false
	}
	delete(s.tags, filename)
	for i, name := range s.order {
		if name == filename {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	metrics.StoreEntries.Set(float64(len(s.order)))
	return true
}

// Held reports whether Persist is held after a failed load.
func (s *Store) Held() bool { return s.held.Load() }

// AllowOverwrite lifts the hold placed by a failed load, letting the next
// Persist replace the stored document. It reports whether a hold was lifted.
func (s *Store) AllowOverwrite() bool {
	return s.held.Swap(false)
}

// Persist writes the current state through the Persister. Calls are
// serialized and each writes the state as of when it acquired the write
// slot. Failures wrap ErrPersistence; memory is never rolled back. While
// the store is held nothing is written and the error wraps ErrWriteHeld.
func (s *Store) Persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if s.held.Load() {
		metrics.StorePersistTotal.WithLabelValues(s.backend, "held").Inc()
		return fmt.Errorf("%w: %w", ErrPersistence, ErrWriteHeld)
	}

	start := time.Now()
	err := s.persister.Save(ctx, s.Snapshot())
	metrics.StorePersistDuration.WithLabelValues(s.backend).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.StorePersistTotal.WithLabelValues(s.backend, "error").Inc()
		if !errors.Is(err, ErrPersistence) {
			err = fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return err
	}
	metrics.StorePersistTotal.WithLabelValues(s.backend, "success").Inc()
	return nil
}

// Backend returns the metric label of the underlying persister.
func (s *Store) Backend() string { return s.backend }

// NormalizeTags trims each tag, drops blanks and removes case-sensitive
// duplicates keeping the first occurrence.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func backendName(p Persister) string {
	if b, ok := p.(interface{ Backend() string }); ok {
		return b.Backend()
	}
	return "custom"
}
