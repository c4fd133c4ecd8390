// Package facematch holds the in-memory gallery of enrolled encodings and the matching rules
// shared by the session loop, the identify endpoint and the CLI.
package facematch

import "github.com/Enigma-Deez/Roll-Call/internal/database"

// DefaultThreshold is the maximum accepted Euclidean distance between a probe and an encoding.
const DefaultThreshold = 0.5

// Entry is one gallery row.
type Entry struct {
	IdentityID string
	Kind       database.Kind
	Name       string
	Encoding   []float32
}

// Match is the nearest gallery entry for a probe.
type Match struct {
	IdentityID string
	Kind       database.Kind
	Name       string
	Distance   float64
}
