package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mydb "github.com/TimurManjosov/silencegate/internal/db"
)

// SQLiteStore persists preferences in a local SQLite file. Writes run with
// synchronous=FULL so every Save is on disk when it returns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := mydb.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create preferences table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load retrieves a single value by key.
func (s *SQLiteStore) Load(ctx context.Context, key string) (Value, error) {
	var (
		kind int64
		v    Value
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, a, b FROM preferences WHERE key = ?`, key,
	).Scan(&kind, &v.A, &v.B)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Value{}, ErrNotFound
		}
		return Value{}, fmt.Errorf("load %s: %w", key, err)
	}
	v.Kind = Kind(kind)
	return v, nil
}

// Save upserts the value for key.
func (s *SQLiteStore) Save(ctx context.Context, key string, v Value) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, kind, a, b, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET kind = excluded.kind, a = excluded.a, b = excluded.b, updated_at = excluded.updated_at`,
		key, int64(v.Kind), v.A, v.B, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// LoadAll returns every stored value.
func (s *SQLiteStore) LoadAll(ctx context.Context) (map[string]Value, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, kind, a, b FROM preferences`)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Value)
	for rows.Next() {
		var (
			key  string
			kind int64
			v    Value
		)
		if err := rows.Scan(&key, &kind, &v.A, &v.B); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		v.Kind = Kind(kind)
		out[key] = v
	}
	return out, rows.Err()
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
