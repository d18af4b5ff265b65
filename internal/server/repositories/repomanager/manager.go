// Package repomanager opens the credential store selected by the database
// DSN and owns its connection for the lifetime of the server.
//
//	postgres://, postgresql://      PostgreSQL via pgx, migrated with goose
//	mongodb://, mongodb+srv://      MongoDB with unique indexes
//	memory://                       in-process store for development
package repomanager

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/gophreview/internal/server/repositories/users"
)

// Manager hands out the users repository and manages the underlying
// connection.
type Manager struct {
	backend string
	users   users.Repository
	ping    func(context.Context) error
	close   func(context.Context) error
}

// Users returns the credential store.
func (m *Manager) Users() users.Repository { return m.users }

// Backend names the selected store ("postgres", "mongodb" or "memory").
func (m *Manager) Backend() string { return m.backend }

// Ping checks that the store is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	if m.ping == nil {
		return nil
	}
	return m.ping(ctx)
}

// Close releases the connection.
func (m *Manager) Close(ctx context.Context) error {
	if m.close == nil {
		return nil
	}
	return m.close(ctx)
}

// NewMemory returns a manager over a fresh in-memory store.
func NewMemory() *Manager {
	return &Manager{backend: "memory", users: users.NewMemoryRepository()}
}

// Open connects to the store named by dsn and prepares its schema.
func Open(ctx context.Context, dsn string) (*Manager, error) {
	scheme, _, ok := strings.Cut(dsn, "://")
	if !ok {
		return nil, fmt.Errorf("database dsn %q has no scheme", redact(dsn))
	}

	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return openPostgres(ctx, dsn)
	case "mongodb", "mongodb+srv":
		return openMongo(ctx, dsn)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", scheme)
	}
}

// redact drops credentials from a DSN before it is logged or returned.
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
