package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Enigma-Deez/Roll-Call/internal/database"
	"github.com/google/uuid"
)

// SessionRepository provides PostgreSQL-backed session storage
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, start_time, end_time, active, COALESCE(lecturer_id::text, ''), end_reason`

// CreateSession inserts a new active session
func (r *SessionRepository) CreateSession(ctx context.Context, s *database.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, start_time, active)
		VALUES ($1, $2, TRUE)
	`, s.ID, s.StartTime)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID, returns nil if not found.
// The id column is a uuid, so a malformed id can not match anything.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (*database.Session, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// ListSessions returns the most recent sessions first
func (r *SessionRepository) ListSessions(ctx context.Context, limit int) ([]database.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY start_time DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var result []database.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return result, nil
}

// AssignLecturer sets the lecturer only while none is assigned
func (r *SessionRepository) AssignLecturer(ctx context.Context, sessionID, lecturerID string) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE sessions SET lecturer_id = $2
		WHERE id = $1 AND lecturer_id IS NULL
	`, sessionID, lecturerID)
	if err != nil {
		return false, fmt.Errorf("assign lecturer: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return count == 1, nil
}

// EndSession marks the session inactive, keeping the first end time
func (r *SessionRepository) EndSession(ctx context.Context, sessionID string, endTime time.Time, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions SET active = FALSE, end_time = $2, end_reason = $3
		WHERE id = $1 AND end_time IS NULL
	`, sessionID, endTime, reason)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// CloseOrphanedSessions ends sessions left active by a previous process
func (r *SessionRepository) CloseOrphanedSessions(ctx context.Context, endTime time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE sessions SET active = FALSE, end_time = $1, end_reason = $2
		WHERE active
	`, endTime, database.EndReasonOrphaned)
	if err != nil {
		return 0, fmt.Errorf("close orphaned sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return count, nil
}

func scanSession(scanner interface{ Scan(...any) error }) (database.Session, error) {
	var (
		s   database.Session
		end sql.NullTime
	)
	if err := scanner.Scan(&s.ID, &s.StartTime, &end, &s.Active, &s.LecturerID, &s.EndReason); err != nil {
		return s, err
	}
	if end.Valid {
		t := end.Time
		s.EndTime = &t
	}
	return s, nil
}
