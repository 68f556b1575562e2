/*
Package reconciler keeps the tag index in step with the library directory
and applies user edits.

Each filename is either untracked or tracked with a tag list:

	input          untracked                       tracked
	FileAdded      track with no tags              no-op
	FileModified   track if the file exists        no-op, tags untouched
	FileRemoved    no-op                           untrack
	SetTags        ErrNotFound                     validate, replace tags
	Delete         ErrNotFound                     remove file, then untrack

Every operation runs on the Run goroutine in arrival order and persists
before the next one starts. Results are returned as Result values whose Kind
classifies failures for the HTTP layer.
*/
package reconciler
