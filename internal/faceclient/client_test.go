package faceclient

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDetectAndEncode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("expected /embed/face, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected multipart file: %v", err)
			return
		}
		defer file.Close()
		if ct := header.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("expected image/png part, got %s", ct)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"faces_count": 3,
			"model": "buffalo_l",
			"faces": [
				{"face_index": 0, "dim": 3, "embedding": [0.1, 0.2, 0.3], "bbox": [10, 20, 50, 80], "det_score": 0.98},
				{"face_index": 1, "dim": 0, "embedding": [], "bbox": [0, 0, 1, 1], "det_score": 0.2},
				{"face_index": 2, "dim": 3, "embedding": [0.4, 0.5, 0.6], "bbox": [60, 20, 90, 80], "det_score": 0.91}
			]
		}`)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", 0)
	faces, err := client.DetectAndEncode(context.Background(), pngImage(t, 16, 16))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("expected 2 faces with encodings, got %d", len(faces))
	}
	if faces[0].Encoding[2] != 0.3 || faces[1].Encoding[0] != 0.4 {
		t.Errorf("expected detection order to be kept, got %+v", faces)
	}
	if faces[0].Score != 0.98 {
		t.Errorf("expected score 0.98, got %v", faces[0].Score)
	}
	if len(faces[0].BBox) != 4 {
		t.Errorf("expected 4-value bbox, got %v", faces[0].BBox)
	}
}

func TestDetectAndEncode_NoFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"faces_count": 0, "faces": []}`)
	}))
	defer server.Close()

	faces, err := NewClient(server.URL, 0).DetectAndEncode(context.Background(), pngImage(t, 4, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("expected no faces, got %d", len(faces))
	}
}

func TestDetectAndEncode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"server error", http.StatusInternalServerError, "model not loaded", "status 500"},
		{"bad json", http.StatusOK, "{not json", "failed to parse response"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer server.Close()

			_, err := NewClient(server.URL, 0).DetectAndEncode(context.Background(), pngImage(t, 4, 4))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("expected error containing %q, got %v", tc.wantMsg, err)
			}
		})
	}
}

func TestDetectAndEncode_EmptyImage(t *testing.T) {
	if _, err := NewClient("http://127.0.0.1:1", 0).DetectAndEncode(context.Background(), nil); err == nil {
		t.Error("expected error for empty image")
	}
}

func TestDetectAndEncode_DownscalesLargeImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected multipart file: %v", err)
			return
		}
		defer file.Close()
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("expected resized upload to be jpeg, got %s", ct)
		}
		data, _ := io.ReadAll(file)
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			t.Errorf("decode upload: %v", err)
			return
		}
		if cfg.Width != 32 || cfg.Height != 16 {
			t.Errorf("expected 32x16 upload, got %dx%d", cfg.Width, cfg.Height)
		}
		io.WriteString(w, `{"faces_count": 0, "faces": []}`)
	}))
	defer server.Close()

	if _, err := NewClient(server.URL, 32).DetectAndEncode(context.Background(), pngImage(t, 64, 32)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDownscale(t *testing.T) {
	small := pngImage(t, 10, 20)
	got, err := Downscale(small, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, small) {
		t.Error("expected image within bounds to be returned unchanged")
	}

	got, err = Downscale(pngImage(t, 20, 80), 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(got))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if format != "jpeg" || cfg.Width != 10 || cfg.Height != 40 {
		t.Errorf("expected 10x40 jpeg, got %dx%d %s", cfg.Width, cfg.Height, format)
	}

	if _, err := Downscale([]byte("not an image"), 40); err == nil {
		t.Error("expected error for invalid image")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"bmp", []byte{0x42, 0x4D, 0, 0, 0, 0, 0, 0}, "image/bmp"},
		{"short", []byte{0xFF}, "application/octet-stream"},
		{"unknown", []byte("plaintext"), "application/octet-stream"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectMIMEType(tc.data); got != tc.want {
				t.Errorf("detectMIMEType = %s, want %s", got, tc.want)
			}
		})
	}
}
