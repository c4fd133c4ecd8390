package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Enigma-Deez/Roll-Call/internal/attendance"
)

// SessionEngine is the part of the attendance engine the HTTP API drives.
type SessionEngine interface {
	Start(ctx context.Context, device int) (string, error)
	Stop(id string)
	Running() []string
	Sessions() []attendance.Entry
	SessionDetail(ctx context.Context, id string) (*attendance.SessionDetail, error)
	DefaultDevice() int
}

// SessionsHandler handles session lifecycle endpoints.
type SessionsHandler struct {
	engine SessionEngine
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(engine SessionEngine) *SessionsHandler {
	return &SessionsHandler{engine: engine}
}

// StartRequest is the optional body of POST /sessions/start.
type StartRequest struct {
	Device *int `json:"device,omitempty"`
}

// StartResponse carries the new session id.
type StartResponse struct {
	SessionID string `json:"session_id"`
}

// StopRequest is the body of POST /sessions/stop.
type StopRequest struct {
	SessionID string `json:"session_id"`
}

// Start launches a session on the requested or default camera.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	device := h.engine.DefaultDevice()
	if req.Device != nil {
		if *req.Device < 0 {
			respondError(w, http.StatusBadRequest, "device must not be negative")
			return
		}
		device = *req.Device
	}

	id, err := h.engine.Start(r.Context(), device)
	if err != nil {
		log.Printf("Start session on device %d failed: %v", device, err)
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, StartResponse{SessionID: id})
}

// Stop asks a session to stop. Unknown ids are not an error.
func (h *SessionsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	var req StopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	h.engine.Stop(req.SessionID)
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Running lists the ids of running sessions.
func (h *SessionsHandler) Running(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Running())
}

// List returns every session this process knows about, with its state.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Sessions())
}

// Get returns one stored session with its attendance.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	detail, err := h.engine.SessionDetail(r.Context(), id)
	if err != nil {
		if !errors.Is(err, attendance.ErrUnknownSession) {
			log.Printf("Session %s lookup failed: %v", sanitizeForLog(id), err)
		}
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, detail)
}
