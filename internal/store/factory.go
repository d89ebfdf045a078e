package store

import (
	"context"
	"fmt"

	mydb "github.com/TimurManjosov/silencegate/internal/db"
)

// Options selects and configures a backend.
type Options struct {
	Type       string // memory, sqlite or postgres
	DSN        string // postgres connection string
	SQLitePath string // sqlite database file
}

// NewStore creates a new store based on the given store type.
// Supported types: "memory", "sqlite", "postgres"
func NewStore(ctx context.Context, opts Options) (Store, error) {
	switch opts.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := NewSQLiteStore(ctx, opts.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return s, nil
	case "postgres":
		pool, err := mydb.NewPool(ctx, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		s, err := NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", opts.Type)
	}
}
