package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Enigma-Deez/Roll-Call/internal/attendance"
	"github.com/Enigma-Deez/Roll-Call/internal/database"
	"github.com/Enigma-Deez/Roll-Call/internal/faceclient"
)

// fakeEngine records calls made by the session handlers
type fakeEngine struct {
	mu        sync.Mutex
	startErr  error
	started   []int
	stopped   []string
	running   []string
	entries   []attendance.Entry
	details   map[string]*attendance.SessionDetail
	detailErr error
}

func (e *fakeEngine) Start(ctx context.Context, device int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return "", e.startErr
	}
	e.started = append(e.started, device)
	return "session-1", nil
}

func (e *fakeEngine) Stop(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = append(e.stopped, id)
}

func (e *fakeEngine) Running() []string            { return e.running }
func (e *fakeEngine) Sessions() []attendance.Entry { return e.entries }
func (e *fakeEngine) DefaultDevice() int           { return 2 }

func (e *fakeEngine) SessionDetail(ctx context.Context, id string) (*attendance.SessionDetail, error) {
	if e.detailErr != nil {
		return nil, e.detailErr
	}
	d, ok := e.details[id]
	if !ok {
		return nil, attendance.ErrUnknownSession
	}
	return d, nil
}

type enrollCall struct {
	kind        database.Kind
	name        string
	externalRef string
	image       []byte
}

// fakeEnroller returns a fixed id or error
type fakeEnroller struct {
	err   error
	calls []enrollCall
}

func (f *fakeEnroller) Enroll(ctx context.Context, kind database.Kind, name, externalRef string, image []byte) (string, error) {
	f.calls = append(f.calls, enrollCall{kind, name, externalRef, image})
	if f.err != nil {
		return "", f.err
	}
	return "identity-1", nil
}

// fakeDetector returns fixed faces
type fakeDetector struct {
	faces []faceclient.Face
	err   error
}

func (f *fakeDetector) DetectAndEncode(ctx context.Context, image []byte) ([]faceclient.Face, error) {
	return f.faces, f.err
}

// multipartRequest builds a POST with form fields and an optional file part
func multipartRequest(t *testing.T, path string, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if file != nil {
		part, err := mw.CreateFormFile("file", "face.jpg")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(file)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
