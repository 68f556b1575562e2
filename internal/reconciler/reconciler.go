package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"giffer/internal/filesystem"
	"giffer/internal/logging"
	"giffer/internal/metrics"
	"giffer/internal/tagstore"
	"giffer/internal/watcher"
)

const (
	queueSize   = 256
	maxWarnings = 20
)

// ErrStopped is returned for operations submitted after the reconciler
// has shut down.
var ErrStopped = errors.New("reconciler stopped")

// Files is the filesystem side the reconciler needs. filesystem.Library
// satisfies it.
type Files interface {
	Exists(name string) bool
	Remove(name string) error
}

// Publisher receives the snapshot after every mutation and any warnings.
// notify.Hub satisfies it.
type Publisher interface {
	PublishSnapshot(snap tagstore.Snapshot)
	PublishWarning(seq uint64, msg string)
}

// transition applies one input and reports whether state changed.
type transition func(ctx context.Context) (Result, bool)

type op struct {
	input string
	name  string
	apply transition
	reply chan Result
}

// Reconciler is the only writer of the tag store. Watcher events and user
// commands share one FIFO queue and are applied one at a time on the Run
// goroutine, each including its persist.
type Reconciler struct {
	store *tagstore.Store
	files Files
	pub   Publisher

	ops  chan op
	done chan struct{}

	warnMu   sync.Mutex
	warnSeq  uint64
	warnings []Warning
}

// Warning is one recorded warning. Seq starts at 1 and increases by one per
// warning, matching the Seq of the published notify event.
type Warning struct {
	Seq     uint64
	Message string
}

// New creates a Reconciler. Call Run to start applying operations.
func New(store *tagstore.Store, files Files, pub Publisher) *Reconciler {
	return &Reconciler{
		store: store,
		files: files,
		pub:   pub,
		ops:   make(chan op, queueSize),
		done:  make(chan struct{}),
	}
}

// Run applies queued operations until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	defer close(r.done)

	// Persists started before shutdown are allowed to finish.
	persistCtx := context.WithoutCancel(ctx)

	for {
		select {
		case o := <-r.ops:
			metrics.ReconcilerQueueDepth.Dec()
			res := r.apply(persistCtx, o)
			if o.reply != nil {
				o.reply <- res
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Feed submits watcher events in the order received until events is closed
// or ctx is cancelled. A full queue blocks Feed rather than dropping events.
func (r *Reconciler) Feed(ctx context.Context, events <-chan watcher.Event) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := r.enqueue(ctx, r.eventOp(ev, nil)); err != nil {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Handle applies one watcher event and waits for the outcome.
func (r *Reconciler) Handle(ctx context.Context, ev watcher.Event) Result {
	return r.submit(ctx, func(reply chan Result) op { return r.eventOp(ev, reply) })
}

// SetTags replaces the tags of a tracked file.
func (r *Reconciler) SetTags(ctx context.Context, name string, tags []string) Result {
	return r.submit(ctx, func(reply chan Result) op {
		return op{input: "set_tags", name: name, reply: reply, apply: func(ctx context.Context) (Result, bool) {
			return r.setTags(ctx, name, tags)
		}}
	})
}

// Delete removes a tracked file from disk and from the index.
func (r *Reconciler) Delete(ctx context.Context, name string) Result {
	return r.submit(ctx, func(reply chan Result) op {
		return op{input: "delete", name: name, reply: reply, apply: func(ctx context.Context) (Result, bool) {
			return r.deleteFile(ctx, name)
		}}
	})
}

// Snapshot returns the current index without waiting on the queue.
func (r *Reconciler) Snapshot() tagstore.Snapshot {
	return r.store.Snapshot()
}

// Warn records msg, replayed by Warnings, and publishes it.
func (r *Reconciler) Warn(msg string) {
	r.warnMu.Lock()
	r.warnSeq++
	seq := r.warnSeq
	r.warnings = append(r.warnings, Warning{Seq: seq, Message: msg})
	if len(r.warnings) > maxWarnings {
		r.warnings = r.warnings[len(r.warnings)-maxWarnings:]
	}
	r.warnMu.Unlock()

	logging.Warn("%s", msg)
	r.pub.PublishWarning(seq, msg)
}

// Warnings returns recent warnings, oldest first.
func (r *Reconciler) Warnings() []Warning {
	r.warnMu.Lock()
	defer r.warnMu.Unlock()
	return append([]Warning(nil), r.warnings...)
}

func (r *Reconciler) eventOp(ev watcher.Event, reply chan Result) op {
	o := op{input: ev.Kind.String(), name: ev.Name, reply: reply}
	switch ev.Kind {
	case watcher.FileAdded:
		o.apply = func(ctx context.Context) (Result, bool) { return r.fileAdded(ctx, ev.Name) }
	case watcher.FileRemoved:
		o.apply = func(ctx context.Context) (Result, bool) { return r.fileRemoved(ctx, ev.Name) }
	case watcher.FileModified:
		o.apply = func(ctx context.Context) (Result, bool) { return r.fileModified(ctx, ev.Name) }
	default:
		o.apply = func(context.Context) (Result, bool) {
			return Failure(fmt.Errorf("unknown event kind %d for %s", ev.Kind, ev.Name)), false
		}
	}
	return o
}

func (r *Reconciler) enqueue(ctx context.Context, o op) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}

	select {
	case r.ops <- o:
		metrics.ReconcilerQueueDepth.Inc()
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciler) submit(ctx context.Context, build func(chan Result) op) Result {
	reply := make(chan Result, 1)
	if err := r.enqueue(ctx, build(reply)); err != nil {
		return Failure(err)
	}

	select {
	case res := <-reply:
		return res
	case <-r.done:
		// Run may have applied the op just before stopping.
		select {
		case res := <-reply:
			return res
		default:
			return Failure(ErrStopped)
		}
	case <-ctx.Done():
		return Failure(ctx.Err())
	}
}

// apply runs one transition, containing panics so the loop survives.
func (r *Reconciler) apply(ctx context.Context, o op) (res Result) {
	start := time.Now()
	changed := false

	defer func() {
		if p := recover(); p != nil {
			logging.Error("Reconciler: panic applying %s %s: %v", o.input, o.name, p)
			res = Result{Success: false, Kind: KindInternal, Error: fmt.Sprintf("internal error: %v", p)}
			changed = false
		}

		label := "applied"
		switch {
		case !res.Success || res.Kind != "":
			label = string(res.Kind)
		case !changed:
			label = "noop"
		}
		metrics.ReconcilerTransitionsTotal.WithLabelValues(o.input, label).Inc()
		metrics.ReconcilerApplyDuration.WithLabelValues(o.input).Observe(time.Since(start).Seconds())
	}()

	res, changed = o.apply(ctx)
	if !res.Success {
		logging.Debug("Reconciler: %s %s rejected: %s", o.input, o.name, res.Error)
	}
	return res
}

func (r *Reconciler) fileAdded(ctx context.Context, name string) (Result, bool) {
	if !r.store.Ensure(name) {
		return ok(), false
	}
	logging.Info("Tracking new file %s", name)
	return r.commit(ctx), true
}

// fileModified never touches tags. An untracked file that still exists is
// picked up, which heals a missed create.
func (r *Reconciler) fileModified(ctx context.Context, name string) (Result, bool) {
	if r.store.Has(name) || !r.files.Exists(name) {
		return ok(), false
	}
	r.store.Ensure(name)
	logging.Info("Tracking previously unseen file %s", name)
	return r.commit(ctx), true
}

func (r *Reconciler) fileRemoved(ctx context.Context, name string) (Result, bool) {
	if !r.store.Remove(name) {
		return ok(), false
	}
	logging.Info("Stopped tracking removed file %s", name)
	return r.commit(ctx), true
}

func (r *Reconciler) setTags(ctx context.Context, name string, tags []string) (Result, bool) {
	if !r.store.Has(name) {
		return Failure(fmt.Errorf("%w: %s", tagstore.ErrNotFound, name)), false
	}
	if _, err := r.store.Set(name, tags); err != nil {
		return Failure(err), false
	}
	r.allowOverwrite()
	return r.commit(ctx), true
}

// deleteFile removes the file first; the index only changes once the file
// is gone, so a failed delete leaves both untouched.
func (r *Reconciler) deleteFile(ctx context.Context, name string) (Result, bool) {
	if !r.store.Has(name) {
		return Failure(fmt.Errorf("%w: %s", tagstore.ErrNotFound, name)), false
	}
	if err := r.files.Remove(name); err != nil {
		if !errors.Is(err, filesystem.ErrFileSystem) {
			err = fmt.Errorf("%w: %w", filesystem.ErrFileSystem, err)
		}
		logging.Error("Failed to delete %s: %v", name, err)
		return Failure(err), false
	}
	r.store.Remove(name)
	logging.Info("Deleted %s", name)
	r.allowOverwrite()
	return r.commit(ctx), true
}

// allowOverwrite lets a user edit replace a stored index that failed to
// load. Watcher events alone never do.
func (r *Reconciler) allowOverwrite() {
	if r.store.AllowOverwrite() {
		logging.Warn("Saving the tag index again after a user edit; the unreadable index is replaced")
	}
}

// commit persists and notifies. A failed persist keeps the in-memory change,
// still notifies, and reports a warning; the next mutation rewrites the
// whole document.
func (r *Reconciler) commit(ctx context.Context) Result {
	err := r.store.Persist(ctx)
	r.pub.PublishSnapshot(r.store.Snapshot())

	if errors.Is(err, tagstore.ErrWriteHeld) {
		// The load warning already tells the user; one per event is noise.
		logging.Debug("Not saving tag index: %v", err)
		return Result{Success: true, Kind: KindPersistence, Warning: err.Error()}
	}
	if err != nil {
		msg := fmt.Sprintf("Tags could not be saved and will be retried on the next change: %v", err)
		r.Warn(msg)
		return Result{Success: true, Kind: KindPersistence, Warning: msg}
	}
	return ok()
}
