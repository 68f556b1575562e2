package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"giffer/internal/reconciler"
	"giffer/internal/tagstore"
)

// wireMessage is a superset of every server message for decoding in tests.
type wireMessage struct {
	Type    string           `json:"type"`
	Session string           `json:"session"`
	Tags    json.RawMessage  `json:"tags"`
	Warning string           `json:"warning"`
	Term    string           `json:"term"`
	Results []tagstore.Entry `json:"results"`
}

func dialSession(t *testing.T, env *testEnv) (*websocket.Conn, context.Context) {
	t.Helper()

	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn, ctx
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) wireMessage {
	t.Helper()
	var msg wireMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func waitForSubscribers(t *testing.T, env *testEnv, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", env.hub.Subscribers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocket_SnapshotAndWarningsOnConnect(t *testing.T) {
	env := newTestEnv(t)
	env.tags.warnings = []reconciler.Warning{{Seq: 1, Message: "tags.json was corrupt; started empty"}}

	conn, ctx := dialSession(t, env)

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageSnapshot {
		t.Fatalf("first message type = %q, want %q", msg.Type, MessageSnapshot)
	}
	if msg.Session == "" {
		t.Error("expected a session id on the initial snapshot")
	}
	want := `{"cat.gif":["cat","funny"],"dog.gif":["dog"],"new.gif":[]}`
	if string(msg.Tags) != want {
		t.Errorf("tags = %s, want %s", msg.Tags, want)
	}

	msg = readMessage(t, ctx, conn)
	if msg.Type != MessageWarning || !strings.Contains(msg.Warning, "corrupt") {
		t.Errorf("second message = %+v, want the replayed warning", msg)
	}
}

func TestWebSocket_ReplayedWarningIsNotRepeated(t *testing.T) {
	env := newTestEnv(t)
	env.tags.warnings = []reconciler.Warning{{Seq: 4, Message: "could not save tags"}}

	conn, ctx := dialSession(t, env)
	readMessage(t, ctx, conn)
	if msg := readMessage(t, ctx, conn); msg.Type != MessageWarning {
		t.Fatalf("second message = %+v, want the replayed warning", msg)
	}
	waitForSubscribers(t, env, 1)

	// The same warning also reaches the hub after Subscribe. Warnings are
	// delivered ahead of snapshots, so a duplicate would arrive first.
	env.hub.PublishWarning(4, "could not save tags")
	env.hub.PublishSnapshot(tagstore.NewSnapshot([]tagstore.Entry{{Filename: "after.gif", Tags: []string{}}}))

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageSnapshot || string(msg.Tags) != `{"after.gif":[]}` {
		t.Fatalf("next message = %+v, want the snapshot without a repeated warning", msg)
	}

	env.hub.PublishWarning(5, "disk full")
	if msg := readMessage(t, ctx, conn); msg.Type != MessageWarning || msg.Warning != "disk full" {
		t.Errorf("new warning = %+v", msg)
	}
}

func TestWebSocket_PushesPublishedEvents(t *testing.T) {
	env := newTestEnv(t)
	conn, ctx := dialSession(t, env)
	readMessage(t, ctx, conn)
	waitForSubscribers(t, env, 1)

	env.hub.PublishSnapshot(tagstore.NewSnapshot([]tagstore.Entry{{Filename: "only.gif", Tags: []string{"solo"}}}))

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageSnapshot || string(msg.Tags) != `{"only.gif":["solo"]}` {
		t.Errorf("pushed message = %+v (tags %s)", msg, msg.Tags)
	}

	env.hub.PublishWarning(1, "could not save tags")
	msg = readMessage(t, ctx, conn)
	if msg.Type != MessageWarning || msg.Warning != "could not save tags" {
		t.Errorf("pushed warning = %+v", msg)
	}
}

func TestWebSocket_SearchAnswersLatestTerm(t *testing.T) {
	env := newTestEnv(t)
	env.h.searchDebounce = 50 * time.Millisecond

	conn, ctx := dialSession(t, env)
	readMessage(t, ctx, conn)

	for _, term := range []string{"c", "ca", "dog"} {
		if err := wsjson.Write(ctx, conn, ClientMessage{Type: MessageSearch, Term: term}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageResults {
		t.Fatalf("message type = %q, want %q", msg.Type, MessageResults)
	}
	if msg.Term != "dog" {
		t.Errorf("term = %q, want the last submitted term", msg.Term)
	}
	if len(msg.Results) != 1 || msg.Results[0].Filename != "dog.gif" {
		t.Errorf("results = %+v, want [dog.gif]", msg.Results)
	}
}

func TestWebSocket_UnsubscribesOnDisconnect(t *testing.T) {
	env := newTestEnv(t)
	conn, ctx := dialSession(t, env)
	readMessage(t, ctx, conn)
	waitForSubscribers(t, env, 1)

	conn.Close(websocket.StatusNormalClosure, "bye")

	waitForSubscribers(t, env, 0)
}
