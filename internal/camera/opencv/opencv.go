// Package opencv captures frames from local devices through OpenCV.
package opencv

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Enigma-Deez/Roll-Call/internal/camera"
	"gocv.io/x/gocv"
)

// Source opens V4L/DirectShow devices with gocv.VideoCapture.
type Source struct{}

// NewSource returns the OpenCV camera source.
func NewSource() Source {
	return Source{}
}

// Open opens the device by index.
func (Source) Open(device int) (camera.Handle, error) {
	capture, err := gocv.VideoCaptureDevice(device)
	if err != nil {
		return nil, fmt.Errorf("open device %d: %v: %w", device, err, camera.ErrUnavailable)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open device %d: %w", device, camera.ErrUnavailable)
	}
	// Keep only the latest frame so slow recognition does not lag behind the room.
	capture.Set(gocv.VideoCaptureBufferSize, 1)

	slog.Info("camera: opened", "backend", "opencv", "device", device)
	return &handle{device: device, capture: capture, mat: gocv.NewMat()}, nil
}

type handle struct {
	device  int
	capture *gocv.VideoCapture
	mat     gocv.Mat

	mu     sync.Mutex
	closed bool
}

// ReadFrame grabs one frame and encodes it as JPEG.
// The capture read blocks in C, so ctx is only checked before the call.
func (h *handle) ReadFrame(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false, fmt.Errorf("device %d: %w", h.device, camera.ErrUnavailable)
	}

	if ok := h.capture.Read(&h.mat); !ok || h.mat.Empty() {
		return nil, false, nil
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, h.mat)
	if err != nil {
		return nil, false, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()
	frame := make([]byte, len(data))
	copy(frame, data)
	return frame, true, nil
}

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.mat.Close()
	if err := h.capture.Close(); err != nil {
		return fmt.Errorf("close device %d: %w", h.device, err)
	}
	slog.Info("camera: released", "backend", "opencv", "device", h.device)
	return nil
}
