package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsOriginAllowed(t *testing.T) {
	allowed := map[string]struct{}{"https://attendance.example.edu": {}}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", false},
		{"http://localhost", true},
		{"http://localhost:5173", true},
		{"https://localhost:8443", true},
		{"http://localhost.evil.com", false},
		{"https://attendance.example.edu", true},
		{"https://attendance.example.edu.evil.com", false},
		{"https://other.example.edu", false},
	}

	for _, tc := range tests {
		t.Run(tc.origin, func(t *testing.T) {
			if got := isOriginAllowed(tc.origin, allowed); got != tc.want {
				t.Errorf("isOriginAllowed(%q) = %v, want %v", tc.origin, got, tc.want)
			}
		})
	}
}

func TestParseAllowedOrigins(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	got := parseAllowedOrigins()
	if len(got) != 2 {
		t.Fatalf("expected 2 origins, got %v", got)
	}
	for _, o := range []string{"https://a.example", "https://b.example"} {
		if _, ok := got[o]; !ok {
			t.Errorf("expected %s to be allowed", o)
		}
	}
}

func TestCORS(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://attendance.example.edu")

	called := false
	handler := CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
		wantCalled bool
	}{
		{"allowed origin", http.MethodGet, "https://attendance.example.edu", "https://attendance.example.edu", http.StatusTeapot, true},
		{"unknown origin", http.MethodGet, "https://evil.example", "", http.StatusTeapot, true},
		{"preflight", http.MethodOptions, "http://localhost:3000", "http://localhost:3000", http.StatusOK, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest(tc.method, "/api/v1/sessions/start", nil)
			req.Header.Set("Origin", tc.origin)
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, req)

			if recorder.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, recorder.Code)
			}
			if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Errorf("expected allow-origin %q, got %q", tc.wantOrigin, got)
			}
			if called != tc.wantCalled {
				t.Errorf("expected next called = %v", tc.wantCalled)
			}
		})
	}
}

func TestCheckOrigin(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", "")
	check := CheckOrigin()

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:8080", true},
		{"https://evil.example", false},
	}

	for _, tc := range tests {
		t.Run(tc.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s1/feed", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if got := check(req); got != tc.want {
				t.Errorf("CheckOrigin(%q) = %v, want %v", tc.origin, got, tc.want)
			}
		})
	}
}
