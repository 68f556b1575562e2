package workers

import "runtime"

// Count returns multiplier workers per usable CPU, at least one and at most
// limit (0 means no limit). A positive override replaces the computed count.
func Count(multiplier float64, limit, override int) int {
	n := override
	if n <= 0 {
		n = int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	}
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForCPU sizes a pool for CPU-bound work such as image decoding.
func ForCPU(limit, override int) int {
	return Count(1.0, limit, override)
}
