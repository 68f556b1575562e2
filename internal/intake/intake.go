package intake

import (
	"context"
	"path/filepath"

	"giffer/internal/logging"
	"giffer/internal/metrics"
	"giffer/internal/watcher"
)

// Mover moves a file into the library. filesystem.Library satisfies it.
type Mover interface {
	MoveIn(src string) (string, error)
}

// Intake moves every new file that settles in a secondary directory (for
// example Downloads) into the library. The library watcher then reports the
// file under its final name.
type Intake struct {
	dir   string
	w     *watcher.Watcher
	mover Mover
}

// New creates an Intake for the directory watched by w.
func New(dir string, w *watcher.Watcher, mover Mover) *Intake {
	return &Intake{dir: dir, w: w, mover: mover}
}

// Run starts the watcher and moves files until ctx is cancelled.
func (in *Intake) Run(ctx context.Context) error {
	if err := in.w.Start(ctx); err != nil {
		return err
	}
	defer in.w.Stop()

	for {
		select {
		case ev, ok := <-in.w.Events():
			if !ok {
				return nil
			}
			if ev.Kind != watcher.FileAdded {
				continue
			}
			in.move(ev.Name)
		case <-ctx.Done():
			return nil
		}
	}
}

func (in *Intake) move(name string) {
	src := filepath.Join(in.dir, name)
	dst, err := in.mover.MoveIn(src)
	if err != nil {
		logging.Warn("Intake: failed to move %s into library: %v", src, err)
		metrics.IntakeMovesTotal.WithLabelValues("error").Inc()
		return
	}
	logging.Info("Intake: moved %s into library as %s", src, dst)
	metrics.IntakeMovesTotal.WithLabelValues("success").Inc()
}
