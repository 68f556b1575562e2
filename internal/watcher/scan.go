package watcher

import (
	"context"
	"fmt"
)

// Lister lists the file names currently present in a watched directory.
// filesystem.Library satisfies it.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// Scan reconciles the directory contents with the names already known. It
// returns FileAdded for every listed file that is not known, followed by
// FileRemoved for every known name that is no longer listed. If the listing
// fails no events are returned, so a transient error never prunes entries.
func Scan(ctx context.Context, lister Lister, known []string) ([]Event, error) {
	names, err := lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial scan: %w", err)
	}

	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}
	knownSet := make(map[string]bool, len(known))
	for _, name := range known {
		knownSet[name] = true
	}

	var events []Event
	for _, name := range names {
		if !knownSet[name] {
			events = append(events, Event{Kind: FileAdded, Name: name})
		}
	}
	for _, name := range known {
		if !present[name] {
			events = append(events, Event{Kind: FileRemoved, Name: name})
		}
	}
	return events, nil
}
