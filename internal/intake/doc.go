// Package intake watches a secondary directory and moves newly created files
// into the library.
//
// The intake watcher runs in creates-only mode with its own, usually longer,
// quiescence window so browser downloads finish before they are moved.
package intake
