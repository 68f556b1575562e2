// Package query implements tag search over a tag index snapshot: a pure
// substring Filter and a last-write-wins Debouncer for interactive input.
package query
