package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/Enigma-Deez/Roll-Call/internal/database"
	"github.com/Enigma-Deez/Roll-Call/internal/facematch"
)

// IdentitiesHandler lists enrolled identities.
type IdentitiesHandler struct {
	store database.IdentityReader
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(store database.IdentityReader) *IdentitiesHandler {
	return &IdentitiesHandler{store: store}
}

// IdentityResponse is an identity without its encoding.
type IdentityResponse struct {
	ID          string        `json:"id"`
	Kind        database.Kind `json:"kind"`
	Name        string        `json:"name"`
	ExternalRef string        `json:"external_ref"`
	Dimensions  int           `json:"dimensions"`
	CreatedAt   time.Time     `json:"created_at"`
}

// List returns identities filtered by ?kind= and a diacritic-insensitive ?q= name search.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	kind := database.Kind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		respondError(w, http.StatusBadRequest, "kind must be student or lecturer")
		return
	}
	query := r.URL.Query().Get("q")

	identities, err := h.store.ListIdentities(r.Context(), kind)
	if err != nil {
		log.Printf("List identities failed: %v", err)
		respondError(w, http.StatusServiceUnavailable, "failed to list identities")
		return
	}

	result := make([]IdentityResponse, 0, len(identities))
	for _, id := range identities {
		if !facematch.NameMatches(id.Name, query) {
			continue
		}
		result = append(result, IdentityResponse{
			ID:          id.ID,
			Kind:        id.Kind,
			Name:        id.Name,
			ExternalRef: id.ExternalRef,
			Dimensions:  len(id.Encoding),
			CreatedAt:   id.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, result)
}
