// Package sqlite is the embedded single-file store for small deployments and tests.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/Enigma-Deez/Roll-Call/internal/config"
	"github.com/Enigma-Deez/Roll-Call/internal/database"
	"github.com/Enigma-Deez/Roll-Call/internal/database/migrate"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	database.RegisterBackend("sqlite", func(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
		path, err := PathFromURL(cfg.URL)
		if err != nil {
			return nil, err
		}
		return Open(ctx, path)
	})
}

// Store implements database.Store on a SQLite file.
type Store struct {
	db *sql.DB
}

// PathFromURL turns sqlite:///abs/path.db or sqlite://relative.db into a file path.
func PathFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse sqlite URL: %w", err)
	}
	path := u.Host + u.Path
	if path == "" {
		return "", errors.New("sqlite URL has no file path")
	}
	return path, nil
}

// Open opens (creating if needed) the database file and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writes from concurrent session loops.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	if _, err := migrate.Apply(ctx, db, sub, migrate.SQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

// MigrationsApplied returns the list of applied migrations
func (s *Store) MigrationsApplied(ctx context.Context) ([]string, error) {
	return migrate.Applied(ctx, s.db)
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func (s *Store) ListIdentities(ctx context.Context, kind database.Kind) ([]database.Identity, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if kind == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, kind, name, external_ref, encoding, created_at
			FROM identities
			ORDER BY CASE kind WHEN 'student' THEN 0 ELSE 1 END, created_at, rowid
		`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, kind, name, external_ref, encoding, created_at
			FROM identities
			WHERE kind = ?
			ORDER BY created_at, rowid
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
	row := s.db.QueryRowContext(ctx, `
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO identities (id, kind, name, external_ref, encoding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, identity.ID, string(identity.Kind), identity.Name, identity.ExternalRef, enc, toNanos(identity.CreatedAt))
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
		created  int64
	)
	err := scanner.Scan(&identity.ID, &kind, &identity.Name, &identity.ExternalRef, &enc, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity, err
		}
		return identity, fmt.Errorf("scan identity: %w", err)
	}
	identity.Kind = database.Kind(kind)
	identity.CreatedAt = fromNanos(created)
	identity.Encoding, err = database.UnmarshalEncoding(enc)
	if err != nil {
		return identity, err
	}
	return identity, nil
}

func (s *Store) CreateSession(ctx context.Context, session *database.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, start_time, active) VALUES (?, ?, 1)
	`, session.ID, toNanos(session.StartTime))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*database.Session, error) {
	row := s.db.QueryRowContext(ctx, `
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
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_time, end_time, active, COALESCE(lecturer_id, ''), end_reason
		FROM sessions
		ORDER BY start_time DESC, id
		LIMIT ?
	`, limit)
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
		start   int64
		end     sql.NullInt64
	)
	if err := scanner.Scan(&session.ID, &start, &end, &session.Active, &session.LecturerID, &session.EndReason); err != nil {
		return session, err
	}
	session.StartTime = fromNanos(start)
	if end.Valid {
		t := fromNanos(end.Int64)
		session.EndTime = &t
	}
	return session, nil
}

func (s *Store) AssignLecturer(ctx context.Context, sessionID, lecturerID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
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
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET active = 0, end_time = ?, end_reason = ?
		WHERE id = ? AND end_time IS NULL
	`, toNanos(endTime), reason, sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (s *Store) CloseOrphanedSessions(ctx context.Context, endTime time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET active = 0, end_time = ?, end_reason = ? WHERE active = 1
	`, toNanos(endTime), database.EndReasonOrphaned)
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (session_id, student_id, first_seen, last_seen, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (session_id, student_id) DO UPDATE SET last_seen = excluded.last_seen
	`, sessionID, studentID, toNanos(seenAt), toNanos(seenAt), database.StatusPresent)
	if err != nil {
		return fmt.Errorf("record sighting: %w", err)
	}
	return nil
}

func (s *Store) TouchLastSeen(ctx context.Context, sessionID, studentID string, seenAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE attendance SET last_seen = ?
		WHERE session_id = ? AND student_id = ? AND last_seen < ?
	`, toNanos(seenAt), sessionID, studentID, toNanos(seenAt))
	if err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}
	return nil
}

func (s *Store) ListAttendance(ctx context.Context, sessionID string) ([]database.AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
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
		var (
			rec         database.AttendanceRecord
			first, last int64
		)
		if err := rows.Scan(&rec.SessionID, &rec.StudentID, &first, &last, &rec.Status); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		rec.FirstSeen = fromNanos(first)
		rec.LastSeen = fromNanos(last)
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return result, nil
}

var _ database.Store = (*Store)(nil)
