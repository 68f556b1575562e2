package filesystem

import "time"

// Observer records filesystem operation metrics. The metrics package provides
// the implementation; filesystem only depends on this interface.
type Observer interface {
	// ObserveOperation records duration and error status for one operation.
	// volume is a resolved label such as "library" or "intake"; operation is
	// one of "stat", "open", "readdir", "remove", "copy", "rename".
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveStaleError(retryOp, volume string)
}

// If nil, recording is skipped.
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}

// timed records the duration and outcome of a non-retried operation.
func timed(volume, operation string, start time.Time, err error) {
	if o := observe(); o != nil {
		o.ObserveOperation(volume, operation, time.Since(start).Seconds(), err)
	}
}
