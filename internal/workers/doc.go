/*
Package workers sizes worker pools from the CPUs the Go runtime may use.

runtime.NumCPU reports every host CPU, while GOMAXPROCS honours affinity
masks and container limits, so pool sizes are derived from GOMAXPROCS:

	// Thumbnail decoding is CPU-bound: one worker per usable CPU, at most 4.
	n := workers.ForCPU(4, cfg.ThumbnailWorkers)

A positive override (the thumbnail_workers setting) replaces the computed
value but is still capped by the limit.
*/
package workers
