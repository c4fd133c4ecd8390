package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Enigma-Deez/Roll-Call/internal/attendance"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps engine errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, attendance.ErrNoFaceDetected),
		errors.Is(err, attendance.ErrInvalidKind),
		errors.Is(err, attendance.ErrNameRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, attendance.ErrUnknownSession):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrDeviceBusy):
		return http.StatusConflict
	case errors.Is(err, attendance.ErrDetectionFailed):
		return http.StatusBadGateway
	case errors.Is(err, attendance.ErrStoreUnavailable),
		errors.Is(err, attendance.ErrCameraUnavailable),
		errors.Is(err, attendance.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
