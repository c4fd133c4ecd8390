// Package constants provides shared constants used across the codebase.
package constants

// Handler listing constants
const (
	// DefaultSessionListLimit is the number of stored sessions listed by the CLI
	DefaultSessionListLimit = 50
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum file upload size in bytes (20MB)
	MaxUploadSize = 20 << 20
)
