// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Identify constants
const (
	// DefaultIdentifyTopK is the number of gallery candidates returned per detected face
	DefaultIdentifyTopK = 3

	// MaxIdentifyTopK caps the k query parameter of the identify endpoint
	MaxIdentifyTopK = 20
)

// Processing constants
const (
	// DefaultConcurrency is the default number of parallel workers for bulk enrollment
	DefaultConcurrency = 4

	// ShutdownTimeoutSeconds bounds how long serve waits for session loops and HTTP requests to finish
	ShutdownTimeoutSeconds = 15
)
