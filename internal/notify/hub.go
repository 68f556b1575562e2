package notify

import (
	"sync"

	"giffer/internal/metrics"
	"giffer/internal/tagstore"
)

// Kind identifies what an Event carries.
type Kind string

const (
	// KindSnapshot carries the full tag index after a mutation.
	KindSnapshot Kind = "snapshot"
	// KindWarning carries a non-fatal problem for the user, such as a failed
	// persist or a corrupt store found at startup.
	KindWarning Kind = "warning"
)

// Event is one notification.
type Event struct {
	Kind     Kind
	Snapshot tagstore.Snapshot
	Warning  string
	// Seq numbers warnings from one publisher in order; zero when unknown.
	Seq uint64
}

// subscriber holds at most one undelivered event of each kind so a
// pending warning is never replaced by a later snapshot.
type subscriber struct {
	snapshots chan Event
	warnings  chan Event
	out       chan Event
	done      chan struct{}
}

// Hub fans out events to subscribers. Publishing never blocks: a subscriber
// that has not consumed its previous snapshot gets it replaced by the newer
// one.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	s := &subscriber{
		snapshots: make(chan Event, 1),
		warnings:  make(chan Event, 1),
		out:       make(chan Event),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.out)
		return s.out, func() {}
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go s.forward()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[s]; ok {
				delete(h.subs, s)
				close(s.done)
			}
			h.mu.Unlock()
		})
	}
	return s.out, cancel
}

// forward delivers pending events, warnings first, until the subscriber is
// cancelled.
func (s *subscriber) forward() {
	defer close(s.out)
	for {
		var ev Event
		select {
		case ev = <-s.warnings:
		default:
			select {
			case ev = <-s.warnings:
			case ev = <-s.snapshots:
			case <-s.done:
				return
			}
		}

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}

// Publish delivers ev to every subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		ch := s.snapshots
		if ev.Kind == KindWarning {
			ch = s.warnings
		}
		offer(ch, ev)
	}
}

// offer puts ev in a one-slot channel, replacing whatever is waiting there.
func offer(ch chan Event, ev Event) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
			metrics.NotificationsDropped.Inc()
		default:
		}
	}
}

// PublishSnapshot is shorthand for publishing a KindSnapshot event.
func (h *Hub) PublishSnapshot(snap tagstore.Snapshot) {
	h.Publish(Event{Kind: KindSnapshot, Snapshot: snap})
}

// PublishWarning is shorthand for publishing a KindWarning event.
func (h *Hub) PublishWarning(seq uint64, msg string) {
	h.Publish(Event{Kind: KindWarning, Warning: msg, Seq: seq})
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close cancels every subscriber. Later Subscribe calls get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.done)
	}
}
