// Package camera defines frame acquisition for session loops.
// Backends live in the opencv and gstreamer subpackages so that cgo stays out of
// packages that only need the interfaces.
package camera

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means the device could not be opened.
	ErrUnavailable = errors.New("camera unavailable")
	// ErrDeviceBusy means another session already holds the device.
	ErrDeviceBusy = errors.New("camera device busy")
)

// Handle is an open camera owned by exactly one session loop.
type Handle interface {
	// ReadFrame returns one JPEG encoded frame. ok is false when no frame is
	// available right now; the caller pauses and retries.
	ReadFrame(ctx context.Context) (frame []byte, ok bool, err error)
	// Close releases the device. Calling it more than once is safe.
	Close() error
}

// Source opens camera devices by index.
type Source interface {
	Open(device int) (Handle, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(device int) (Handle, error)

func (f SourceFunc) Open(device int) (Handle, error) {
	return f(device)
}
