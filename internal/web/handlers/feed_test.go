package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Enigma-Deez/Roll-Call/internal/attendance"
)

func TestBroadcaster_FiltersBySession(t *testing.T) {
	b := NewBroadcaster()
	s1 := b.AddListener("s1")
	s2 := b.AddListener("s2")

	b.Publish(attendance.Event{Type: attendance.EventAttendance, SessionID: "s1", IdentityID: "ada"})

	select {
	case e := <-s1:
		if e.IdentityID != "ada" {
			t.Errorf("expected ada, got %s", e.IdentityID)
		}
	default:
		t.Fatal("expected event for s1 listener")
	}
	select {
	case e := <-s2:
		t.Errorf("expected nothing for s2, got %+v", e)
	default:
	}

	b.RemoveListener(s1)
	b.RemoveListener(s1)
	if b.Listeners() != 1 {
		t.Errorf("expected 1 listener, got %d", b.Listeners())
	}
}

func TestBroadcaster_DropsWhenListenerFull(t *testing.T) {
	b := NewBroadcaster()
	ch := b.AddListener("s1")
	for i := 0; i < cap(ch)+10; i++ {
		b.Publish(attendance.Event{Type: attendance.EventAttendance, SessionID: "s1"})
	}
	if len(ch) != cap(ch) {
		t.Errorf("expected full buffer of %d, got %d", cap(ch), len(ch))
	}
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster()
	ch := b.AddListener("s1")
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("expected listener closed")
	}
	late := b.AddListener("s1")
	if _, ok := <-late; ok {
		t.Error("expected listener added after close to be closed")
	}
	b.Publish(attendance.Event{SessionID: "s1"})
	if b.Listeners() != 0 {
		t.Errorf("expected no listeners, got %d", b.Listeners())
	}
}

func newFeedServer(t *testing.T, engine *fakeEngine, b *Broadcaster) *httptest.Server {
	t.Helper()
	handler := NewFeedHandler(engine, b, func(r *http.Request) bool { return true })
	r := chi.NewRouter()
	r.Get("/sessions/{id}/feed", handler.Feed)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialFeed(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + id + "/feed"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial feed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

type feedMessage struct {
	Type       string                    `json:"type"`
	Session    *attendance.SessionDetail `json:"session"`
	IdentityID string                    `json:"identity_id"`
}

func TestFeedHandler_StreamsUntilStopped(t *testing.T) {
	engine := &fakeEngine{details: map[string]*attendance.SessionDetail{
		"s1": {ID: "s1", Active: true, State: attendance.StateRunning},
	}}
	b := NewBroadcaster()
	srv := newFeedServer(t, engine, b)
	conn := dialFeed(t, srv, "s1")

	var status feedMessage
	if err := conn.ReadJSON(&status); err != nil {
		t.Fatalf("failed to read status: %v", err)
	}
	if status.Type != "status" || status.Session == nil || status.Session.ID != "s1" {
		t.Fatalf("unexpected status message %+v", status)
	}

	b.Publish(attendance.Event{Type: attendance.EventAttendance, SessionID: "other", IdentityID: "bob"})
	b.Publish(attendance.Event{Type: attendance.EventAttendance, SessionID: "s1", IdentityID: "ada"})
	b.Publish(attendance.Event{Type: attendance.EventSessionStopped, SessionID: "s1"})

	var got []feedMessage
	for {
		var msg feedMessage
		err := conn.ReadJSON(&msg)
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("expected normal close, got %v", err)
			}
			break
		}
		got = append(got, msg)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %+v", got)
	}
	if got[0].Type != string(attendance.EventAttendance) || got[0].IdentityID != "ada" {
		t.Errorf("unexpected first event %+v", got[0])
	}
	if got[1].Type != string(attendance.EventSessionStopped) {
		t.Errorf("expected stopped event, got %+v", got[1])
	}
}

func TestFeedHandler_EndedSessionClosesAfterStatus(t *testing.T) {
	end := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	engine := &fakeEngine{details: map[string]*attendance.SessionDetail{
		"s1": {ID: "s1", Active: false, EndTime: &end, EndReason: "stopped"},
	}}
	srv := newFeedServer(t, engine, NewBroadcaster())
	conn := dialFeed(t, srv, "s1")

	var status feedMessage
	if err := conn.ReadJSON(&status); err != nil {
		t.Fatalf("failed to read status: %v", err)
	}
	if status.Session == nil || status.Session.Active {
		t.Errorf("expected inactive session status, got %+v", status.Session)
	}
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}
}

func TestFeedHandler_UnknownSession(t *testing.T) {
	srv := newFeedServer(t, &fakeEngine{}, NewBroadcaster())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/nope/feed"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 response, got %v", resp)
	}
}
