package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store and ensures the schema.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("create preferences table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Load retrieves a single value by key from the database.
func (p *PostgresStore) Load(ctx context.Context, key string) (Value, error) {
	var (
		kind int32
		v    Value
	)
	err := p.pool.QueryRow(ctx,
		`SELECT kind, a, b FROM preferences WHERE key = $1`, key,
	).Scan(&kind, &v.A, &v.B)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Value{}, ErrNotFound
		}
		return Value{}, fmt.Errorf("load %s: %w", key, err)
	}
	v.Kind = Kind(kind)
	return v, nil
}

// Save upserts the value for key in a single statement.
func (p *PostgresStore) Save(ctx context.Context, key string, v Value) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO preferences (key, kind, a, b, updated_at) VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (key) DO UPDATE SET kind = excluded.kind, a = excluded.a, b = excluded.b, updated_at = now()`,
		key, int32(v.Kind), v.A, v.B,
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// LoadAll returns every stored value.
func (p *PostgresStore) LoadAll(ctx context.Context) (map[string]Value, error) {
	rows, err := p.pool.Query(ctx, `SELECT key, kind, a, b FROM preferences`)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Value)
	for rows.Next() {
		var (
			key  string
			kind int32
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

// Close closes the database connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
