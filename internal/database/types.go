package database

import (
	"time"
)

// Kind distinguishes the two enrolled populations.
type Kind string

const (
	KindStudent  Kind = "student"
	KindLecturer Kind = "lecturer"
)

// Valid reports whether k is one of the known identity kinds.
func (k Kind) Valid() bool {
	return k == KindStudent || k == KindLecturer
}

// StatusPresent is the only attendance status a camera sighting produces.
const StatusPresent = "present"

// Session end reasons stored alongside the end time.
const (
	EndReasonStopped  = "stopped"
	EndReasonOrphaned = "orphaned"
	EndReasonCrashed  = "crashed"
)

// Identity is an enrolled student or lecturer with the face encoding used for matching.
// Identities are never mutated after creation.
type Identity struct {
	ID          string
	Kind        Kind
	Name        string
	ExternalRef string // matric number or staff number
	Encoding    []float32
	CreatedAt   time.Time
}

// Session is one bounded run of camera-based identification.
type Session struct {
	ID         string
	StartTime  time.Time
	EndTime    *time.Time // nil while running
	Active     bool
	LecturerID string // empty until the first lecturer is recognized
	EndReason  string // stopped, orphaned or the crash cause
}

// AttendanceRecord is the single presence row for a student in a session.
type AttendanceRecord struct {
	SessionID string
	StudentID string
	FirstSeen time.Time
	LastSeen  time.Time
	Status    string
}
