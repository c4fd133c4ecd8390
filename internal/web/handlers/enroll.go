package handlers

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/Enigma-Deez/Roll-Call/internal/constants"
	"github.com/Enigma-Deez/Roll-Call/internal/database"
)

// Enroller stores a new identity from one photo.
type Enroller interface {
	Enroll(ctx context.Context, kind database.Kind, name, externalRef string, image []byte) (string, error)
}

// EnrollHandler handles student and lecturer enrollment.
type EnrollHandler struct {
	enroller Enroller
}

// NewEnrollHandler creates a new enroll handler.
func NewEnrollHandler(enroller Enroller) *EnrollHandler {
	return &EnrollHandler{enroller: enroller}
}

// EnrollResponse is returned after a successful enrollment.
type EnrollResponse struct {
	IdentityID string `json:"identity_id"`
}

// Student enrolls a student.
func (h *EnrollHandler) Student(w http.ResponseWriter, r *http.Request) {
	h.enroll(w, r, database.KindStudent)
}

// Lecturer enrolls a lecturer.
func (h *EnrollHandler) Lecturer(w http.ResponseWriter, r *http.Request) {
	h.enroll(w, r, database.KindLecturer)
}

func (h *EnrollHandler) enroll(w http.ResponseWriter, r *http.Request, kind database.Kind) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	image, err := readFormFile(r, "file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	if len(image) == 0 {
		respondError(w, http.StatusBadRequest, "file is empty")
		return
	}

	id, err := h.enroller.Enroll(r.Context(), kind, name, externalRef(r, kind), image)
	if err != nil {
		log.Printf("Enroll %s %q failed: %v", kind, sanitizeForLog(name), err)
		respondError(w, statusForError(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, EnrollResponse{IdentityID: id})
}

// externalRef reads external_ref, falling back to matric_no for students and
// staff_no for lecturers.
func externalRef(r *http.Request, kind database.Kind) string {
	if ref := r.FormValue("external_ref"); ref != "" {
		return ref
	}
	if kind == database.KindStudent {
		return r.FormValue("matric_no")
	}
	return r.FormValue("staff_no")
}

// readFormFile reads a whole multipart file field.
func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
