// Package mock provides an in-memory implementation of database.Store for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Enigma-Deez/Roll-Call/internal/database"
)

type attendanceKey struct {
	sessionID string
	studentID string
}

// Store is a mock implementation of database.Store
type Store struct {
	mu         sync.RWMutex
	identities []database.Identity
	sessions   map[string]*database.Session
	order      []string
	attendance map[attendanceKey]*database.AttendanceRecord

	// Error injection
	ListIdentitiesError error
	GetIdentityError    error
	CreateIdentityError error
	CreateSessionError  error
	GetSessionError     error
	ListSessionsError   error
	AssignLecturerError error
	EndSessionError     error
	CloseOrphanedError  error
	RecordSightingError error
	TouchLastSeenError  error
	ListAttendanceError error

	// Call counters
	RecordSightingCalls int
	TouchLastSeenCalls  int
	Closed              bool
}

// NewStore creates a new empty mock store
func NewStore() *Store {
	return &Store{
		sessions:   make(map[string]*database.Session),
		attendance: make(map[attendanceKey]*database.AttendanceRecord),
	}
}

// AddIdentity adds an identity to the mock store
func (m *Store) AddIdentity(identity database.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities = append(m.identities, identity)
}

// AddSession adds a session to the mock store
func (m *Store) AddSession(session database.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = &session
	m.order = append(m.order, session.ID)
}

// ListIdentities returns identities of a kind in insertion order
func (m *Store) ListIdentities(ctx context.Context, kind database.Kind) ([]database.Identity, error) {
	if m.ListIdentitiesError != nil {
		return nil, m.ListIdentitiesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []database.Identity
	if kind == "" {
		for _, k := range []database.Kind{database.KindStudent, database.KindLecturer} {
			for _, id := range m.identities {
				if id.Kind == k {
					result = append(result, id)
				}
			}
		}
		return result, nil
	}
	for _, id := range m.identities {
		if id.Kind == kind {
			result = append(result, id)
		}
	}
	return result, nil
}

// GetIdentity retrieves an identity by ID
func (m *Store) GetIdentity(ctx context.Context, id string) (*database.Identity, error) {
	if m.GetIdentityError != nil {
		return nil, m.GetIdentityError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.identities {
		if m.identities[i].ID == id {
			identity := m.identities[i]
			return &identity, nil
		}
	}
	return nil, nil
}

// CreateIdentity stores a new identity
func (m *Store) CreateIdentity(ctx context.Context, identity *database.Identity) error {
	if m.CreateIdentityError != nil {
		return m.CreateIdentityError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now()
	}
	m.identities = append(m.identities, *identity)
	return nil
}

// IdentityCount returns the number of stored identities
func (m *Store) IdentityCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities)
}

// CreateSession inserts a new session
func (m *Store) CreateSession(ctx context.Context, session *database.Session) error {
	if m.CreateSessionError != nil {
		return m.CreateSessionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *session
	m.sessions[s.ID] = &s
	m.order = append(m.order, s.ID)
	return nil
}

// GetSession retrieves a session by ID
func (m *Store) GetSession(ctx context.Context, id string) (*database.Session, error) {
	if m.GetSessionError != nil {
		return nil, m.GetSessionError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	result := *s
	return &result, nil
}

// ListSessions returns sessions newest first
func (m *Store) ListSessions(ctx context.Context, limit int) ([]database.Session, error) {
	if m.ListSessionsError != nil {
		return nil, m.ListSessionsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []database.Session
	for i := len(m.order) - 1; i >= 0; i-- {
		result = append(result, *m.sessions[m.order[i]])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// AssignLecturer sets the lecturer if none is assigned
func (m *Store) AssignLecturer(ctx context.Context, sessionID, lecturerID string) (bool, error) {
	if m.AssignLecturerError != nil {
		return false, m.AssignLecturerError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.LecturerID != "" {
		return false, nil
	}
	s.LecturerID = lecturerID
	return true, nil
}

// EndSession marks a session inactive
func (m *Store) EndSession(ctx context.Context, sessionID string, endTime time.Time, reason string) error {
	if m.EndSessionError != nil {
		return m.EndSessionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.EndTime != nil {
		return nil
	}
	end := endTime
	s.EndTime = &end
	s.Active = false
	s.EndReason = reason
	return nil
}

// CloseOrphanedSessions ends every active session
func (m *Store) CloseOrphanedSessions(ctx context.Context, endTime time.Time) (int64, error) {
	if m.CloseOrphanedError != nil {
		return 0, m.CloseOrphanedError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if !s.Active {
			continue
		}
		end := endTime
		s.EndTime = &end
		s.Active = false
		s.EndReason = database.EndReasonOrphaned
		n++
	}
	return n, nil
}

// RecordSighting creates the record if absent and sets last seen
func (m *Store) RecordSighting(ctx context.Context, sessionID, studentID string, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordSightingCalls++
	if m.RecordSightingError != nil {
		return m.RecordSightingError
	}
	key := attendanceKey{sessionID, studentID}
	rec, ok := m.attendance[key]
	if !ok {
		m.attendance[key] = &database.AttendanceRecord{
			SessionID: sessionID,
			StudentID: studentID,
			FirstSeen: seenAt,
			LastSeen:  seenAt,
			Status:    database.StatusPresent,
		}
		return nil
	}
	rec.LastSeen = seenAt
	return nil
}

// TouchLastSeen advances last seen of an existing record
func (m *Store) TouchLastSeen(ctx context.Context, sessionID, studentID string, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TouchLastSeenCalls++
	if m.TouchLastSeenError != nil {
		return m.TouchLastSeenError
	}
	rec, ok := m.attendance[attendanceKey{sessionID, studentID}]
	if ok && seenAt.After(rec.LastSeen) {
		rec.LastSeen = seenAt
	}
	return nil
}

// ListAttendance returns a session's records ordered by first seen
func (m *Store) ListAttendance(ctx context.Context, sessionID string) ([]database.AttendanceRecord, error) {
	if m.ListAttendanceError != nil {
		return nil, m.ListAttendanceError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []database.AttendanceRecord
	for key, rec := range m.attendance {
		if key.sessionID == sessionID {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FirstSeen.Equal(result[j].FirstSeen) {
			return result[i].StudentID < result[j].StudentID
		}
		return result[i].FirstSeen.Before(result[j].FirstSeen)
	})
	return result, nil
}

// Close marks the store closed
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

var _ database.Store = (*Store)(nil)
