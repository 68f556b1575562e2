package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"giffer/internal/filesystem"
	"giffer/internal/logging"
	"giffer/internal/mediatypes"
	"giffer/internal/metrics"
)

// DefaultQuiescence is how long a file must stay unchanged before its event
// is emitted.
const DefaultQuiescence = 1500 * time.Millisecond

// Kind is the type of a stabilized file event.
type Kind int

const (
	FileAdded Kind = iota + 1
	FileRemoved
	FileModified
)

func (k Kind) String() string {
	switch k {
	case FileAdded:
		return "added"
	case FileRemoved:
		return "removed"
	case FileModified:
		return "modified"
	default:
		return "unknown"
	}
}

// Event is a stabilized change to one file, identified by base name.
type Event struct {
	Kind Kind
	Name string
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Kind, e.Name)
}

// Config describes one watched directory.
type Config struct {
	// Name labels logs and metrics ("library", "intake").
	Name string
	Dir  string
	// Filter selects the entries that produce events. Hidden files never do.
	Filter     mediatypes.Filter
	Quiescence time.Duration
	// CreatesOnly suppresses FileRemoved and FileModified.
	CreatesOnly bool
	// Buffer is the capacity of the Events channel.
	Buffer int
}

// pending tracks one file inside its quiescence window.
type pending struct {
	timer   *time.Timer
	gen     uint64
	created bool
	// removed is set once the name was unlinked or renamed away during the
	// burst, so a file recreated under it is reported as a new file.
	removed bool

	exists  bool
	size    int64
	modTime time.Time
}

// Watcher watches one directory, non-recursively, and emits one Event per
// burst of raw filesystem activity once the file has been quiet for the
// quiescence window.
type Watcher struct {
	cfg   Config
	fsw   *fsnotify.Watcher
	retry filesystem.RetryConfig

	mu      sync.Mutex
	pending map[string]*pending
	queue   []Event
	stopped bool

	wake chan struct{}
	out  chan Event
	done chan struct{}

	wg       sync.WaitGroup
	stopOnce sync.Once
	closeErr error
}

// New validates cfg and returns an unstarted Watcher.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watcher: directory is required")
	}
	if cfg.Name == "" {
		cfg.Name = "library"
	}
	if cfg.Quiescence <= 0 {
		cfg.Quiescence = DefaultQuiescence
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	if len(cfg.Filter.Extensions()) == 0 {
		cfg.Filter = mediatypes.NewFilter(nil)
	}

	return &Watcher{
		cfg:     cfg,
		retry:   filesystem.DefaultRetryConfig(),
		pending: make(map[string]*pending),
		wake:    make(chan struct{}, 1),
		out:     make(chan Event, cfg.Buffer),
		done:    make(chan struct{}),
	}, nil
}

// Events returns the channel of stabilized events. It is closed after Stop.
func (w *Watcher) Events() <-chan Event {
	return w.out
}

// Start begins watching. The watcher stops when ctx is cancelled or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.WithLabelValues(w.cfg.Name).Inc()
		return fmt.Errorf("create %s watcher: %w", w.cfg.Name, err)
	}
	if err := fsw.Add(w.cfg.Dir); err != nil {
		fsw.Close()
		metrics.WatcherErrors.WithLabelValues(w.cfg.Name).Inc()
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}
	w.fsw = fsw

	w.wg.Add(2)
	go w.processEvents()
	go w.emit()

	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.done:
		}
	}()

	logging.Info("Watching %s directory %s (quiescence %v)", w.cfg.Name, w.cfg.Dir, w.cfg.Quiescence)
	return nil
}

// Stop ends watching, discards files still inside their quiescence window
// and closes the Events channel.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		for _, p := range w.pending {
			p.timer.Stop()
		}
		w.pending = make(map[string]*pending)
		metrics.WatcherPending.WithLabelValues(w.cfg.Name).Set(0)
		w.mu.Unlock()

		close(w.done)
		if w.fsw != nil {
			w.closeErr = w.fsw.Close()
		}
	})
	w.wg.Wait()
	return w.closeErr
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Error("%s watcher error: %v", w.cfg.Name, err)
			metrics.WatcherErrors.WithLabelValues(w.cfg.Name).Inc()

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(filepath.Dir(event.Name)) != filepath.Clean(w.cfg.Dir) {
		return
	}
	name := filepath.Base(event.Name)
	if !w.cfg.Filter.Match(name) {
		return
	}

	metrics.WatcherEventsTotal.WithLabelValues(w.cfg.Name, eventType(event.Op)).Inc()

	exists, size, modTime := w.probe(name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	p, ok := w.pending[name]
	if !ok {
		p = &pending{}
		w.pending[name] = p
		metrics.WatcherPending.WithLabelValues(w.cfg.Name).Set(float64(len(w.pending)))
	}
	if event.Op.Has(fsnotify.Create) {
		p.created = true
	}
	if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) || !exists {
		p.removed = true
	}
	p.exists, p.size, p.modTime = exists, size, modTime
	w.arm(name, p)
}

// arm (re)starts the quiescence timer for name. Caller holds w.mu.
func (w *Watcher) arm(name string, p *pending) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.gen++
	gen := p.gen
	p.timer = time.AfterFunc(w.cfg.Quiescence, func() { w.settle(name, gen) })
}

// settle runs when name's timer fires. If the file changed since the last
// probe the timer is re-armed; otherwise the burst is finished. A burst
// queues one event, except a file that was removed and then recreated,
// which queues FileRemoved followed by FileAdded.
func (w *Watcher) settle(name string, gen uint64) {
	w.mu.Lock()
	if p, ok := w.pending[name]; !ok || p.gen != gen || w.stopped {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	exists, size, modTime := w.probe(name)

	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.pending[name]
	if !ok || p.gen != gen || w.stopped {
		return
	}

	if exists != p.exists || size != p.size || !modTime.Equal(p.modTime) {
		if !exists {
			p.removed = true
		}
		p.exists, p.size, p.modTime = exists, size, modTime
		w.arm(name, p)
		return
	}

	delete(w.pending, name)
	metrics.WatcherPending.WithLabelValues(w.cfg.Name).Set(float64(len(w.pending)))

	var kinds []Kind
	switch {
	case !exists:
		kinds = []Kind{FileRemoved}
	case p.removed:
		kinds = []Kind{FileRemoved, FileAdded}
	case p.created:
		kinds = []Kind{FileAdded}
	default:
		kinds = []Kind{FileModified}
	}

	queued := false
	for _, kind := range kinds {
		if w.cfg.CreatesOnly && kind != FileAdded {
			continue
		}
		w.queue = append(w.queue, Event{Kind: kind, Name: name})
		queued = true
	}
	if !queued {
		return
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// probe stats name. Anything that is not a regular file counts as absent.
func (w *Watcher) probe(name string) (exists bool, size int64, modTime time.Time) {
	info, err := filesystem.StatWithRetry(filepath.Join(w.cfg.Dir, name), w.retry)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Debug("%s watcher: stat %s: %v", w.cfg.Name, name, err)
		}
		return false, 0, time.Time{}
	}
	if !info.Mode().IsRegular() {
		return false, 0, time.Time{}
	}
	return true, info.Size(), info.ModTime()
}

// emit is the only sender on w.out. Queued events leave in the order they
// settled; a slow consumer blocks emission rather than losing events.
func (w *Watcher) emit() {
	defer w.wg.Done()
	defer close(w.out)

	for {
		w.mu.Lock()
		var ev Event
		have := len(w.queue) > 0
		if have {
			ev = w.queue[0]
			w.queue = w.queue[1:]
		}
		w.mu.Unlock()

		if !have {
			select {
			case <-w.wake:
				continue
			case <-w.done:
				return
			}
		}

		select {
		case w.out <- ev:
			metrics.WatcherEmittedTotal.WithLabelValues(w.cfg.Name, ev.Kind.String()).Inc()
			logging.Debug("%s watcher: %s", w.cfg.Name, ev)
		case <-w.done:
			return
		}
	}
}

// eventType returns a metric label for an fsnotify operation
func eventType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Chmod):
		return "chmod"
	default:
		return "unknown"
	}
}
