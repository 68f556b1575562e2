package query

import (
	"strings"
	"time"

	"giffer/internal/metrics"
	"giffer/internal/tagstore"
)

// Filter returns the entries of snap with at least one tag containing term,
// case-insensitively, in snapshot order. The term is trimmed first; an empty
// term matches every entry. Untagged files only match the empty term.
func Filter(snap tagstore.Snapshot, term string) []tagstore.Entry {
	start := time.Now()
	defer func() { metrics.SearchDuration.Observe(time.Since(start).Seconds()) }()

	entries := snap.Entries()
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return entries
	}

	out := make([]tagstore.Entry, 0, len(entries))
	for _, e := range entries {
		if matches(e.Tags, term) {
			out = append(out, e)
		}
	}
	return out
}

func matches(tags []string, term string) bool {
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}
