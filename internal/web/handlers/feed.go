package handlers

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Enigma-Deez/Roll-Call/internal/attendance"
	"github.com/Enigma-Deez/Roll-Call/internal/constants"
)

const feedWriteTimeout = 5 * time.Second

// Broadcaster fans session events out to live feed listeners.
// It implements attendance.EventSink.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[chan attendance.Event]string // value is the session filter
	closed    bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[chan attendance.Event]string)}
}

// AddListener registers a listener for one session's events.
func (b *Broadcaster) AddListener(sessionID string) chan attendance.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan attendance.Event, constants.EventChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners[ch] = sessionID
	return ch
}

// RemoveListener unregisters and closes a listener.
func (b *Broadcaster) RemoveListener(ch chan attendance.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[ch]; ok {
		delete(b.listeners, ch)
		close(ch)
	}
}

// Publish sends an event to every listener of its session.
func (b *Broadcaster) Publish(e attendance.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for listener, sessionID := range b.listeners {
		if sessionID != e.SessionID {
			continue
		}
		select {
		case listener <- e:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Close closes every listener; later listeners are closed immediately.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.listeners {
		delete(b.listeners, ch)
		close(ch)
	}
}

// Listeners returns the number of connected listeners.
func (b *Broadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// FeedHandler streams session events over a websocket.
type FeedHandler struct {
	engine      SessionEngine
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
}

// NewFeedHandler creates a feed handler. checkOrigin decides which browser origins may connect.
func NewFeedHandler(engine SessionEngine, broadcaster *Broadcaster, checkOrigin func(r *http.Request) bool) *FeedHandler {
	return &FeedHandler{
		engine:      engine,
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Feed upgrades to a websocket, sends the current session status and then every
// event of the session until it stops, crashes or the client goes away.
func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	detail, err := h.engine.SessionDetail(r.Context(), id)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	// Listen before upgrading so no event is lost between status and stream.
	events := h.broadcaster.AddListener(id)
	defer h.broadcaster.RemoveListener(events)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Feed %s: upgrade failed: %v", sanitizeForLog(id), err)
		return
	}
	defer conn.Close()

	// The client never sends anything; reading detects the close handshake.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeFeed(conn, map[string]any{"type": "status", "session": detail}); err != nil {
		return
	}
	if !detail.Active || detail.State == attendance.StateStopped || detail.State == attendance.StateCrashed {
		closeFeed(conn)
		return
	}

	for {
		select {
		case <-gone:
			return
		case e, ok := <-events:
			if !ok {
				closeFeed(conn)
				return
			}
			if err := writeFeed(conn, e); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					log.Printf("Feed %s: write failed: %v", sanitizeForLog(id), err)
				}
				return
			}
			if e.Type == attendance.EventSessionStopped || e.Type == attendance.EventSessionCrashed {
				closeFeed(conn)
				return
			}
		}
	}
}

func writeFeed(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

func closeFeed(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
