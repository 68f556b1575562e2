package reconciler

import (
	"errors"

	"giffer/internal/filesystem"
	"giffer/internal/tagstore"
)

// ErrorKind classifies a failed or degraded operation for the presentation
// boundary.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindPersistence  ErrorKind = "persistence"
	KindCorruptState ErrorKind = "corrupt_state"
	KindFileSystem   ErrorKind = "filesystem"
	KindInternal     ErrorKind = "internal"
)

// Result is the outcome of one operation. A persistence failure is still a
// success (the change is live in memory) and carries a Warning.
type Result struct {
	Success bool      `json:"success"`
	Kind    ErrorKind `json:"kind,omitempty"`
	Error   string    `json:"error,omitempty"`
	Warning string    `json:"warning,omitempty"`
}

// ClassifyError maps an error to its ErrorKind.
func ClassifyError(err error) ErrorKind {
	switch {
	case errors.Is(err, tagstore.ErrValidation), errors.Is(err, filesystem.ErrInvalidName):
		return KindValidation
	case errors.Is(err, tagstore.ErrNotFound):
		return KindNotFound
	case errors.Is(err, filesystem.ErrFileSystem):
		return KindFileSystem
	case errors.Is(err, tagstore.ErrCorruptState):
		return KindCorruptState
	case errors.Is(err, tagstore.ErrPersistence):
		return KindPersistence
	default:
		return KindInternal
	}
}

// Failure builds a failed Result from err.
func Failure(err error) Result {
	return Result{Success: false, Kind: ClassifyError(err), Error: err.Error()}
}

func ok() Result {
	return Result{Success: true}
}
