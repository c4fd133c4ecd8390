package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/Enigma-Deez/Roll-Call/internal/database/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending migrations automatically on startup
func (p *Pool) Migrate(ctx context.Context) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	applied, err := migrate.Apply(ctx, p.db, sub, migrate.Postgres)
	for _, file := range applied {
		fmt.Printf("Applied migration: %s\n", file)
	}
	return err
}

// MigrationsApplied returns the list of applied migrations
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	return migrate.Applied(ctx, p.db)
}

// MigrationsApplied returns the list of applied migrations
func (s *Store) MigrationsApplied(ctx context.Context) ([]string, error) {
	return s.pool.MigrationsApplied(ctx)
}
