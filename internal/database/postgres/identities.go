package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Enigma-Deez/Roll-Call/internal/database"
	"github.com/pgvector/pgvector-go"
)

// IdentityRepository provides PostgreSQL-backed identity storage
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

const identityColumns = `id, kind, name, external_ref, encoding, created_at`

// ListIdentities returns identities of a kind in enrollment order
func (r *IdentityRepository) ListIdentities(ctx context.Context, kind database.Kind) ([]database.Identity, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if kind == "" {
		rows, err = r.pool.Query(ctx, `
			SELECT `+identityColumns+`
			FROM identities
			ORDER BY CASE kind WHEN 'student' THEN 0 ELSE 1 END, created_at, id
		`)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+identityColumns+`
			FROM identities
			WHERE kind = $1
			ORDER BY created_at, id
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

// GetIdentity retrieves an identity by ID, returns nil if not found
func (r *IdentityRepository) GetIdentity(ctx context.Context, id string) (*database.Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// CreateIdentity stores a new identity
func (r *IdentityRepository) CreateIdentity(ctx context.Context, identity *database.Identity) error {
	vec := pgvector.NewVector(identity.Encoding)
	err := r.pool.QueryRow(ctx, `
		INSERT INTO identities (id, kind, name, external_ref, encoding, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`, identity.ID, string(identity.Kind), identity.Name, identity.ExternalRef, vec).Scan(&identity.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func scanIdentity(scanner interface{ Scan(...any) error }) (database.Identity, error) {
	var (
		identity database.Identity
		kind     string
		vec      pgvector.Vector
	)
	err := scanner.Scan(&identity.ID, &kind, &identity.Name, &identity.ExternalRef, &vec, &identity.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity, err
		}
		return identity, fmt.Errorf("scan identity: %w", err)
	}
	identity.Kind = database.Kind(kind)
	identity.Encoding = vec.Slice()
	return identity, nil
}
