package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"giffer/internal/logging"
)

// LockFileName is the single-instance lock in the data directory.
const LockFileName = "giffer.lock"

// ErrAlreadyRunning is returned by AcquireLock when another process holds
// the lock.
var ErrAlreadyRunning = errors.New("another giffer instance is running")

// InstanceLock is the held single-instance lock.
type InstanceLock struct {
	fl *flock.Flock
}

// AcquireLock takes the single-instance lock in dataDir without blocking.
// Only the data directory itself is created before the lock is held.
func AcquireLock(dataDir string) (*InstanceLock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	fl := flock.New(filepath.Join(dataDir, LockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire instance lock %s: %w", fl.Path(), err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}

	logging.Debug("Acquired instance lock %s", fl.Path())
	return &InstanceLock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *InstanceLock) Path() string {
	return l.fl.Path()
}

// Release drops the lock. The lock file is left in place.
func (l *InstanceLock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release instance lock: %w", err)
	}
	return nil
}
