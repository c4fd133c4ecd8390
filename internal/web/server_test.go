package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Enigma-Deez/Roll-Call/internal/attendance"
	"github.com/Enigma-Deez/Roll-Call/internal/database"
	"github.com/Enigma-Deez/Roll-Call/internal/database/mock"
	"github.com/Enigma-Deez/Roll-Call/internal/faceclient"
)

type stubEngine struct{}

func (stubEngine) Start(ctx context.Context, device int) (string, error) { return "s1", nil }
func (stubEngine) Stop(id string)                                         {}
func (stubEngine) Running() []string                                     { return []string{"s1"} }
func (stubEngine) Sessions() []attendance.Entry                          { return nil }
func (stubEngine) DefaultDevice() int                                    { return 0 }

func (stubEngine) SessionDetail(ctx context.Context, id string) (*attendance.SessionDetail, error) {
	return nil, attendance.ErrUnknownSession
}

type stubEnroller struct{}

func (stubEnroller) Enroll(ctx context.Context, kind database.Kind, name, externalRef string, image []byte) (string, error) {
	return "", attendance.ErrNoFaceDetected
}

type stubDetector struct{}

func (stubDetector) DetectAndEncode(ctx context.Context, image []byte) ([]faceclient.Face, error) {
	return nil, nil
}

func newTestServer() *Server {
	return NewServer(Services{
		Engine:     stubEngine{},
		Enroller:   stubEnroller{},
		Identities: mock.NewStore(),
		Detector:   stubDetector{},
		Threshold:  0.5,
	}, 0, "127.0.0.1")
}

func TestServerRoutes(t *testing.T) {
	router := newTestServer().Router()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"health", http.MethodGet, "/api/v1/health", "", http.StatusOK, `"status":"ok"`},
		{"start", http.MethodPost, "/api/v1/sessions/start", "", http.StatusOK, `"session_id":"s1"`},
		{"stop", http.MethodPost, "/api/v1/sessions/stop", `{"session_id":"s1"}`, http.StatusOK, `"ok":true`},
		{"running", http.MethodGet, "/api/v1/sessions/running", "", http.StatusOK, `["s1"]`},
		{"unknown session", http.MethodGet, "/api/v1/sessions/nope", "", http.StatusNotFound, "unknown session"},
		{"identities", http.MethodGet, "/api/v1/identities", "", http.StatusOK, `[]`},
		{"wrong method", http.MethodGet, "/api/v1/sessions/start", "", http.StatusMethodNotAllowed, ""},
		{"unknown route", http.MethodGet, "/api/v2/sessions", "", http.StatusNotFound, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			recorder := httptest.NewRecorder()

			router.ServeHTTP(recorder, req)

			if recorder.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.wantStatus, recorder.Code, recorder.Body.String())
			}
			if tc.wantBody != "" && !strings.Contains(recorder.Body.String(), tc.wantBody) {
				t.Errorf("expected body to contain %s, got %s", tc.wantBody, recorder.Body.String())
			}
		})
	}
}

func TestServerShutdownClosesFeeds(t *testing.T) {
	s := newTestServer()
	ch := s.services.Broadcaster.AddListener("s1")

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected feed listener closed on shutdown")
	}
}

func TestEnrollRouteMapsNoFace(t *testing.T) {
	router := newTestServer().Router()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/students/enroll", strings.NewReader(
		"--b\r\nContent-Disposition: form-data; name=\"name\"\r\n\r\nAda\r\n"+
			"--b\r\nContent-Disposition: form-data; name=\"file\"; filename=\"a.jpg\"\r\nContent-Type: image/jpeg\r\n\r\njpeg\r\n--b--\r\n"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp["error"] == "" {
		t.Error("expected error message")
	}
}
