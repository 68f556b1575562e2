// Package tagstore holds giffer's tag index: an ordered mapping of filename
// to tags, immutable Snapshots of it, and the JSON document persister.
//
// Only the reconciler mutates a Store. Readers take Snapshots, which are
// copies and never block on persistence. Errors returned by this package
// wrap one of ErrValidation, ErrNotFound, ErrPersistence or ErrCorruptState.
package tagstore
