package handlers

import (
	"context"
	"crypto/sha256"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/Enigma-Deez/Roll-Call/internal/constants"
	"github.com/Enigma-Deez/Roll-Call/internal/database"
	"github.com/Enigma-Deez/Roll-Call/internal/faceclient"
	"github.com/Enigma-Deez/Roll-Call/internal/facematch"
)

// FaceDetector detects faces and computes their encodings.
type FaceDetector interface {
	DetectAndEncode(ctx context.Context, image []byte) ([]faceclient.Face, error)
}

// IdentifyHandler answers "who is in this photo" against the enrolled gallery.
type IdentifyHandler struct {
	store    database.IdentityReader
	detector FaceDetector
	matcher  facematch.Matcher

	mu      sync.Mutex
	index   *facematch.Index
	indexed [sha256.Size]byte
}

// NewIdentifyHandler creates a new identify handler.
func NewIdentifyHandler(store database.IdentityReader, detector FaceDetector, threshold float64) *IdentifyHandler {
	return &IdentifyHandler{
		store:    store,
		detector: detector,
		matcher:  facematch.NewMatcher(threshold),
	}
}

// Candidate is one gallery identity near a detected face.
type Candidate struct {
	IdentityID string        `json:"identity_id"`
	Kind       database.Kind `json:"kind"`
	Name       string        `json:"name"`
	Distance   float64       `json:"distance"`
}

// IdentifiedFace is one detected face with its nearest identities.
type IdentifiedFace struct {
	BBox       []float64   `json:"bbox"`
	Score      float64     `json:"score"`
	Match      *Candidate  `json:"match,omitempty"`
	Candidates []Candidate `json:"candidates"`
}

// IdentifyResponse lists every face found in the uploaded image.
type IdentifyResponse struct {
	Faces []IdentifiedFace `json:"faces"`
}

// Identify detects faces in the uploaded file and returns the top ?k= candidates for each.
// A face gets a match when its nearest identity is within the acceptance threshold.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	k := constants.DefaultIdentifyTopK
	if s := r.URL.Query().Get("k"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > constants.MaxIdentifyTopK {
			respondError(w, http.StatusBadRequest, "k must be between 1 and "+strconv.Itoa(constants.MaxIdentifyTopK))
			return
		}
		k = n
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	image, err := readFormFile(r, "file")
	if err != nil || len(image) == 0 {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}

	gallery, err := facematch.Load(r.Context(), h.store)
	if err != nil {
		log.Printf("Identify: load gallery failed: %v", err)
		respondError(w, http.StatusServiceUnavailable, "failed to load gallery")
		return
	}
	index := h.indexFor(gallery)

	faces, err := h.detector.DetectAndEncode(r.Context(), image)
	if err != nil {
		log.Printf("Identify: detection failed: %v", err)
		respondError(w, http.StatusBadGateway, "face detection failed")
		return
	}

	resp := IdentifyResponse{Faces: make([]IdentifiedFace, 0, len(faces))}
	for _, face := range faces {
		out := IdentifiedFace{BBox: face.BBox, Score: face.Score, Candidates: []Candidate{}}

		matches, err := index.Search(face.Encoding, k, 0)
		if err != nil && !errors.Is(err, facematch.ErrIndexEmpty) {
			log.Printf("Identify: index search failed: %v", err)
		}
		for _, m := range matches {
			out.Candidates = append(out.Candidates, candidate(m))
		}
		if m, ok := h.matcher.Match(face.Encoding, gallery); ok {
			c := candidate(m)
			out.Match = &c
		}
		resp.Faces = append(resp.Faces, out)
	}
	respondJSON(w, http.StatusOK, resp)
}

// indexFor returns the cached index, rebuilding it when the gallery holds a
// different set of identities than the one indexed.
func (h *IdentifyHandler) indexFor(g *facematch.Gallery) *facematch.Index {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := g.Fingerprint()
	if h.index == nil {
		h.index = facematch.NewIndex(g)
		h.indexed = key
	} else if h.indexed != key {
		h.index.Rebuild(g)
		h.indexed = key
	}
	return h.index
}

func candidate(m facematch.Match) Candidate {
	return Candidate{IdentityID: m.IdentityID, Kind: m.Kind, Name: m.Name, Distance: m.Distance}
}
