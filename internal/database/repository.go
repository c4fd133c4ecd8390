package database

import (
	"context"
	"time"
)

// IdentityReader provides read-only access to enrolled identities
type IdentityReader interface {
	// ListIdentities returns every identity of the given kind ordered by creation time.
	// An empty kind returns all identities, students first.
	ListIdentities(ctx context.Context, kind Kind) ([]Identity, error)
	// GetIdentity retrieves an identity by ID, returns nil if not found
	GetIdentity(ctx context.Context, id string) (*Identity, error)
}

// IdentityWriter provides write access to enrolled identities
type IdentityWriter interface {
	IdentityReader

	// CreateIdentity stores a new identity. Enrollment never deduplicates.
	CreateIdentity(ctx context.Context, identity *Identity) error
}

// SessionStore persists session rows
type SessionStore interface {
	// CreateSession inserts a new active session
	CreateSession(ctx context.Context, session *Session) error
	// GetSession retrieves a session by ID, returns nil if not found
	GetSession(ctx context.Context, id string) (*Session, error)
	// ListSessions returns the most recent sessions first, at most limit rows (0 = no limit)
	ListSessions(ctx context.Context, limit int) ([]Session, error)
	// AssignLecturer sets the session lecturer only if none is set yet.
	// Returns false when another lecturer was already assigned.
	AssignLecturer(ctx context.Context, sessionID, lecturerID string) (bool, error)
	// EndSession marks the session inactive with an end time and reason.
	// Ending an already ended session keeps the first end time.
	EndSession(ctx context.Context, sessionID string, endTime time.Time, reason string) error
	// CloseOrphanedSessions ends every session still marked active.
	// Called once at startup, before any loop runs.
	CloseOrphanedSessions(ctx context.Context, endTime time.Time) (int64, error)
}

// AttendanceStore persists attendance records keyed by (session, student)
type AttendanceStore interface {
	// RecordSighting creates the record if absent (first_seen = seenAt, status present)
	// and sets last_seen = seenAt.
	RecordSighting(ctx context.Context, sessionID, studentID string, seenAt time.Time) error
	// TouchLastSeen advances last_seen of an existing record, never moving it backwards.
	TouchLastSeen(ctx context.Context, sessionID, studentID string, seenAt time.Time) error
	// ListAttendance returns all records for a session ordered by first_seen
	ListAttendance(ctx context.Context, sessionID string) ([]AttendanceRecord, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	IdentityWriter
	SessionStore
	AttendanceStore

	Close() error
}
