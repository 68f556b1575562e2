package tagstore

import "errors"

var (
	// ErrValidation marks input rejected before any state change, such as a
	// tag list that is empty after trimming.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an operation on a filename the store does not track.
	ErrNotFound = errors.New("file not tracked")

	// ErrPersistence marks a failed read or write of the backing store. The
	// in-memory state remains authoritative.
	ErrPersistence = errors.New("persistence failed")

	// ErrCorruptState marks a persisted document that is not a mapping of
	// filename to an array of strings.
	ErrCorruptState = errors.New("corrupt tag store")

	// ErrBackedUp accompanies a load failure whose original document was
	// copied aside, so replacing it loses nothing.
	ErrBackedUp = errors.New("original backed up")

	// ErrWriteHeld is returned by Persist while the stored document could
	// not be read and has no backup. See Store.AllowOverwrite.
	ErrWriteHeld = errors.New("saving held: the stored tag index was not loaded")
)
