package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"giffer/internal/logging"
	"giffer/internal/metrics"
	"giffer/internal/notify"
	"giffer/internal/query"
	"giffer/internal/tagstore"
)

// WebSocket message types.
const (
	MessageSnapshot = "snapshot"
	MessageWarning  = "warning"
	MessageResults  = "results"
	MessageSearch   = "search"
)

const wsWriteTimeout = 5 * time.Second

// SnapshotMessage carries the full tag index.
type SnapshotMessage struct {
	Type    string            `json:"type"`
	Session string            `json:"session,omitempty"`
	Tags    tagstore.Snapshot `json:"tags"`
}

// WarningMessage carries a non-fatal problem for the user.
type WarningMessage struct {
	Type    string `json:"type"`
	Warning string `json:"warning"`
}

// ResultsMessage answers a debounced search.
type ResultsMessage struct {
	Type    string           `json:"type"`
	Term    string           `json:"term"`
	Results []tagstore.Entry `json:"results"`
}

// ClientMessage is anything the gallery sends. Only "search" is understood.
type ClientMessage struct {
	Type string `json:"type"`
	Term string `json:"term"`
}

// ServeWebSocket runs one gallery session. The session receives the current
// snapshot and any outstanding warnings on connect, then every later
// snapshot and warning. Search terms it sends are debounced and answered
// with results.
func (h *Handlers) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		logging.Warn("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.CloseNow()

	id := uuid.NewString()
	metrics.WebSocketSessions.Inc()
	defer metrics.WebSocketSessions.Dec()
	logging.Info("WebSocket session %s connected", id)

	err = h.runSession(r.Context(), id, conn)
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		logging.Info("WebSocket session %s closed", id)
	default:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Debug("WebSocket session %s ended: %v", id, err)
		}
	}
}

func (h *Handlers) runSession(ctx context.Context, id string, conn *websocket.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe before reading the snapshot so no mutation slips between.
	events, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	results := make(chan ResultsMessage, 1)
	debouncer := query.NewDebouncer(h.searchDebounce, func(term string) {
		msg := ResultsMessage{Type: MessageResults, Term: term, Results: query.Filter(h.tags.Snapshot(), term)}
		if msg.Results == nil {
			msg.Results = []tagstore.Entry{}
		}
		select {
		case results <- msg:
		case <-ctx.Done():
		}
	})
	defer debouncer.Stop()

	if err := writeMessage(ctx, conn, SnapshotMessage{Type: MessageSnapshot, Session: id, Tags: h.tags.Snapshot()}); err != nil {
		return err
	}
	// Warnings recorded after Subscribe are both replayed here and queued
	// on events; the queued copies are skipped by sequence number.
	var replayed uint64
	for _, warning := range h.tags.Warnings() {
		if err := writeMessage(ctx, conn, WarningMessage{Type: MessageWarning, Warning: warning.Message}); err != nil {
			return err
		}
		replayed = warning.Seq
	}

	readErr := make(chan error, 1)
	go func() {
		readErr <- readClientMessages(ctx, conn, debouncer)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			return err

		case ev, ok := <-events:
			if !ok {
				return conn.Close(websocket.StatusGoingAway, "server shutting down")
			}
			if ev.Kind == notify.KindWarning && ev.Seq != 0 && ev.Seq <= replayed {
				continue
			}
			if err := writeMessage(ctx, conn, eventMessage(ev)); err != nil {
				return err
			}

		case msg := <-results:
			if err := writeMessage(ctx, conn, msg); err != nil {
				return err
			}
		}
	}
}

func readClientMessages(ctx context.Context, conn *websocket.Conn, debouncer *query.Debouncer) error {
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		switch msg.Type {
		case MessageSearch:
			debouncer.Submit(msg.Term)
		default:
			logging.Debug("WebSocket: ignoring message type %q", msg.Type)
		}
	}
}

func eventMessage(ev notify.Event) interface{} {
	if ev.Kind == notify.KindWarning {
		return WarningMessage{Type: MessageWarning, Warning: ev.Warning}
	}
	return SnapshotMessage{Type: MessageSnapshot, Tags: ev.Snapshot}
}

func writeMessage(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
