package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Enigma-Deez/Roll-Call/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// RecordSighting creates the record if absent and sets last_seen.
// first_seen and status are only written on insert.
func (r *AttendanceRepository) RecordSighting(ctx context.Context, sessionID, studentID string, seenAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO attendance (session_id, student_id, first_seen, last_seen, status)
		VALUES ($1, $2, $3, $3, $4)
		ON CONFLICT (session_id, student_id) DO UPDATE SET
			last_seen = EXCLUDED.last_seen
	`, sessionID, studentID, seenAt, database.StatusPresent)
	if err != nil {
		return fmt.Errorf("record sighting: %w", err)
	}
	return nil
}

// TouchLastSeen advances last_seen without ever moving it backwards
func (r *AttendanceRepository) TouchLastSeen(ctx context.Context, sessionID, studentID string, seenAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE attendance SET last_seen = $3
		WHERE session_id = $1 AND student_id = $2 AND last_seen < $3
	`, sessionID, studentID, seenAt)
	if err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}
	return nil
}

// ListAttendance returns the records of a session ordered by first_seen
func (r *AttendanceRepository) ListAttendance(ctx context.Context, sessionID string) ([]database.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT session_id, student_id, first_seen, last_seen, status
		FROM attendance
		WHERE session_id = $1
		ORDER BY first_seen, student_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var result []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(&rec.SessionID, &rec.StudentID, &rec.FirstSeen, &rec.LastSeen, &rec.Status); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return result, nil
}
