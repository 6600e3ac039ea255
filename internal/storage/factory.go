package storage

import (
	"fmt"
)

// Config selects and parameterizes a storage backend.
type Config struct {
	// Type is "sqlite" or "postgres"
	Type string
	// Path is the SQLite database file path
	Path string
	// Postgres holds connection parameters when Type is "postgres"
	Postgres PostgresConfig
}

// New creates the store named by cfg.Type.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case "", "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "postgres", "postgresql":
		return NewPostgresStore(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
