package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Enigma-Deez/Roll-Call/internal/database"
)

func (s *Store) ListIdentities(ctx context.Context, kind database.Kind) ([]database.Identity, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if kind == "" {
		rows, err = s.pool.db.QueryContext(ctx, `
			SELECT id, kind, name, external_ref, encoding, created_at
			FROM identities
			ORDER BY CASE kind WHEN 'student' THEN 0 ELSE 1 END, created_at, seq
		`)
	} else {
		rows, err = s.pool.db.QueryContext(ctx, `
			SELECT id, kind, name, external_ref, encoding, created_at
			FROM identities
			WHERE kind = ?
			ORDER BY created_at, seq
		`, string(kind))
	}
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var result []database.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return result, nil
}

func (s *Store) GetIdentity(ctx context.Context, id string) (*database.Identity, error) {
	row := s.pool.db.QueryRowContext(ctx, `
		SELECT id, kind, name, external_ref, encoding, created_at
		FROM identities WHERE id = ?
	`, id)
	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (s *Store) CreateIdentity(ctx context.Context, identity *database.Identity) error {
	enc, err := database.MarshalEncoding(identity.Encoding)
	if err != nil {
		return err
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	_, err = s.pool.db.ExecContext(ctx, `
		INSERT INTO identities (id, kind, name, external_ref, encoding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, identity.ID, string(identity.Kind), identity.Name, identity.ExternalRef, enc, identity.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func scanIdentity(scanner interface{ Scan(...any) error }) (database.Identity, error) {
	var (
		identity database.Identity
		kind     string
		enc      []byte
	)
	err := scanner.Scan(&identity.ID, &kind, &identity.Name, &identity.ExternalRef, &enc, &identity.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity, err
		}
		return identity, fmt.Errorf("scan identity: %w", err)
	}
	identity.Kind = database.Kind(kind)
	identity.Encoding, err = database.UnmarshalEncoding(enc)
	return identity, err
}

func (s *Store) CreateSession(ctx context.Context, session *database.Session) error {
	_, err := s.pool.db.ExecContext(ctx, `
		INSERT INTO sessions (id, start_time, active) VALUES (?, ?, TRUE)
	`, session.ID, session.StartTime.UTC())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*database.Session, error) {
	row := s.pool.db.QueryRowContext(ctx, `
		SELECT id, start_time, end_time, active, COALESCE(lecturer_id, ''), end_reason
		FROM sessions WHERE id = ?
	`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

func (s *Store) ListSessions(ctx context.Context, limit int) ([]database.Session, error) {
	query := `
		SELECT id, start_time, end_time, active, COALESCE(lecturer_id, ''), end_reason
		FROM sessions
		ORDER BY start_time DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var result []database.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		result = append(result, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return result, nil
}

func scanSession(scanner interface{ Scan(...any) error }) (database.Session, error) {
	var (
		session database.Session
		end     sql.NullTime
	)
	if err := scanner.Scan(&session.ID, &session.StartTime, &end, &session.Active, &session.LecturerID, &session.EndReason); err != nil {
		return session, err
	}
	if end.Valid {
		t := end.Time
		session.EndTime = &t
	}
	return session, nil
}

// AssignLecturer relies on lecturer_id changing from NULL, so RowsAffected is 1 exactly when
// this call won (MySQL reports 0 for updates that leave the row unchanged).
func (s *Store) AssignLecturer(ctx context.Context, sessionID, lecturerID string) (bool, error) {
	result, err := s.pool.db.ExecContext(ctx, `
		UPDATE sessions SET lecturer_id = ? WHERE id = ? AND lecturer_id IS NULL
	`, lecturerID, sessionID)
	if err != nil {
		return false, fmt.Errorf("assign lecturer: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *Store) EndSession(ctx context.Context, sessionID string, endTime time.Time, reason string) error {
	_, err := s.pool.db.ExecContext(ctx, `
		UPDATE sessions SET active = FALSE, end_time = ?, end_reason = ?
		WHERE id = ? AND end_time IS NULL
	`, endTime.UTC(), reason, sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (s *Store) CloseOrphanedSessions(ctx context.Context, endTime time.Time) (int64, error) {
	result, err := s.pool.db.ExecContext(ctx, `
		UPDATE sessions SET active = FALSE, end_time = ?, end_reason = ? WHERE active
	`, endTime.UTC(), database.EndReasonOrphaned)
	if err != nil {
		return 0, fmt.Errorf("close orphaned sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return n, nil
}

func (s *Store) RecordSighting(ctx context.Context, sessionID, studentID string, seenAt time.Time) error {
	_, err := s.pool.db.ExecContext(ctx, `
		INSERT INTO attendance (session_id, student_id, first_seen, last_seen, status)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE last_seen = VALUES(last_seen)
	`, sessionID, studentID, seenAt.UTC(), seenAt.UTC(), database.StatusPresent)
	if err != nil {
		return fmt.Errorf("record sighting: %w", err)
	}
	return nil
}

func (s *Store) TouchLastSeen(ctx context.Context, sessionID, studentID string, seenAt time.Time) error {
	_, err := s.pool.db.ExecContext(ctx, `
		UPDATE attendance SET last_seen = ?
		WHERE session_id = ? AND student_id = ? AND last_seen < ?
	`, seenAt.UTC(), sessionID, studentID, seenAt.UTC())
	if err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}
	return nil
}

func (s *Store) ListAttendance(ctx context.Context, sessionID string) ([]database.AttendanceRecord, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT session_id, student_id, first_seen, last_seen, status
		FROM attendance
		WHERE session_id = ?
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
