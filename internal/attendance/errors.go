package attendance

import (
	"errors"

	"github.com/Enigma-Deez/Roll-Call/internal/camera"
)

var (
	// ErrNoFaceDetected is returned by Enroll when the image has no detectable face.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrCameraUnavailable means the session's camera could not be opened.
	ErrCameraUnavailable = camera.ErrUnavailable
	// ErrDeviceBusy means another running session holds the camera device.
	ErrDeviceBusy = camera.ErrDeviceBusy
	// ErrDetectionFailed marks a failed oracle call. Loops treat it as zero faces.
	ErrDetectionFailed = errors.New("face detection failed")
	// ErrStoreUnavailable wraps any store failure that stops a session or an enrollment.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrUnknownSession is returned by lookups for ids the engine has never seen.
	ErrUnknownSession = errors.New("unknown session")
	// ErrInvalidKind is returned by Enroll for kinds other than student and lecturer.
	ErrInvalidKind = errors.New("invalid identity kind")
	// ErrAlreadyRegistered is returned when a session id is registered twice.
	ErrAlreadyRegistered = errors.New("session already registered")
	// ErrShuttingDown is returned by Start once Shutdown has begun.
	ErrShuttingDown = errors.New("engine shutting down")
)
