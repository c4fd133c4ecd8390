package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/Enigma-Deez/Roll-Call/internal/config"
)

// Opener connects a backend and runs its migrations.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig) (Store, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Opener)
)

// RegisterBackend registers a store constructor for a URL scheme.
// This is called from the backend packages' init to avoid import cycles.
func RegisterBackend(scheme string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if open == nil {
		panic("database: RegisterBackend opener is nil")
	}
	if _, dup := backends[scheme]; dup {
		panic("database: RegisterBackend called twice for " + scheme)
	}
	backends[scheme] = open
}

// Backends returns the registered URL schemes.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	schemes := make([]string, 0, len(backends))
	for s := range backends {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// Scheme extracts the backend scheme from a connection URL.
// "postgresql" is accepted as an alias for "postgres".
func Scheme(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse database URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return "", errors.New("database URL has no scheme")
	}
	if scheme == "postgresql" {
		scheme = "postgres"
	}
	return scheme, nil
}

// Open dispatches to the backend registered for the URL scheme.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (Store, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}
	scheme, err := Scheme(cfg.URL)
	if err != nil {
		return nil, err
	}

	backendsMu.RLock()
	open, ok := backends[scheme]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no database backend for scheme %q (available: %s)", scheme, strings.Join(Backends(), ", "))
	}
	return open(ctx, cfg)
}
