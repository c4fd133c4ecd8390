package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Enigma-Deez/Roll-Call/internal/attendance"
	"github.com/Enigma-Deez/Roll-Call/internal/database"
)

func TestEnrollHandler_Student(t *testing.T) {
	enroller := &fakeEnroller{}
	handler := NewEnrollHandler(enroller)

	req := multipartRequest(t, "/api/v1/students/enroll",
		map[string]string{"name": "Ada Lovelace", "external_ref": "M-001"}, []byte("jpeg-bytes"))
	recorder := httptest.NewRecorder()

	handler.Student(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp EnrollResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.IdentityID != "identity-1" {
		t.Errorf("expected identity-1, got %s", resp.IdentityID)
	}
	if len(enroller.calls) != 1 {
		t.Fatalf("expected 1 enroll call, got %d", len(enroller.calls))
	}
	call := enroller.calls[0]
	if call.kind != database.KindStudent || call.name != "Ada Lovelace" || call.externalRef != "M-001" {
		t.Errorf("unexpected call %+v", call)
	}
	if string(call.image) != "jpeg-bytes" {
		t.Errorf("expected uploaded bytes to be passed through, got %q", call.image)
	}
}

func TestEnrollHandler_LegacyRefFields(t *testing.T) {
	tests := []struct {
		name   string
		field  string
		kind   database.Kind
		handle func(h *EnrollHandler) http.HandlerFunc
	}{
		{"student matric_no", "matric_no", database.KindStudent, func(h *EnrollHandler) http.HandlerFunc { return h.Student }},
		{"lecturer staff_no", "staff_no", database.KindLecturer, func(h *EnrollHandler) http.HandlerFunc { return h.Lecturer }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			enroller := &fakeEnroller{}
			handler := NewEnrollHandler(enroller)
			req := multipartRequest(t, "/enroll", map[string]string{"name": "Grace", tc.field: "REF-9"}, []byte("x"))
			recorder := httptest.NewRecorder()

			tc.handle(handler)(recorder, req)

			assertStatusCode(t, recorder, http.StatusOK)
			if len(enroller.calls) != 1 || enroller.calls[0].externalRef != "REF-9" || enroller.calls[0].kind != tc.kind {
				t.Errorf("unexpected calls %+v", enroller.calls)
			}
		})
	}
}

func TestEnrollHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		file       []byte
		enrollErr  error
		wantStatus int
		wantError  string
	}{
		{"missing name", map[string]string{}, []byte("x"), nil, http.StatusBadRequest, "name is required"},
		{"missing file", map[string]string{"name": "Ada"}, nil, nil, http.StatusBadRequest, "file is required"},
		{"empty file", map[string]string{"name": "Ada"}, []byte{}, nil, http.StatusBadRequest, "file is empty"},
		{"no face", map[string]string{"name": "Ada"}, []byte("x"), attendance.ErrNoFaceDetected, http.StatusUnprocessableEntity, "no face detected"},
		{"store down", map[string]string{"name": "Ada"}, []byte("x"), attendance.ErrStoreUnavailable, http.StatusServiceUnavailable, "store unavailable"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewEnrollHandler(&fakeEnroller{err: tc.enrollErr})
			req := multipartRequest(t, "/api/v1/students/enroll", tc.fields, tc.file)
			recorder := httptest.NewRecorder()

			handler.Student(recorder, req)

			assertStatusCode(t, recorder, tc.wantStatus)
			assertJSONError(t, recorder, tc.wantError)
		})
	}
}

func TestEnrollHandler_NotMultipart(t *testing.T) {
	handler := NewEnrollHandler(&fakeEnroller{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/lecturers/enroll", nil)
	recorder := httptest.NewRecorder()

	handler.Lecturer(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "failed to parse multipart form")
}
