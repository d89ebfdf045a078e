package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when the key was never saved.
var ErrNotFound = errors.New("preference not found")

// Store defines the interface for preference persistence.
// Implementations must be thread-safe and persist each Save before returning;
// there is no batching and no deferred flush.
type Store interface {
	// Load returns the stored value for key.
	// Returns ErrNotFound if the key was never saved.
	Load(ctx context.Context, key string) (Value, error)

	// Save overwrites the value for key atomically.
	Save(ctx context.Context, key string, v Value) error

	// LoadAll returns every stored preference keyed by name.
	LoadAll(ctx context.Context) (map[string]Value, error)

	// Close releases any resources held by the store.
	// After Close is called, the store should not be used.
	Close() error
}

// Kind identifies the shape of a stored value.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindInt
	KindPair
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindPair:
		return "pair"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a persisted preference: a boolean, an integer, or an integer pair.
// A pair is stored in one row so both halves change together.
type Value struct {
	Kind Kind
	A    int64
	B    int64
}

// Bool builds a boolean value.
func Bool(b bool) Value {
	if b {
		return Value{Kind: KindBool, A: 1}
	}
	return Value{Kind: KindBool}
}

// Int builds an integer value.
func Int(i int64) Value { return Value{Kind: KindInt, A: i} }

// Pair builds an integer pair value.
func Pair(a, b int64) Value { return Value{Kind: KindPair, A: a, B: b} }

// AsBool returns the boolean held by v.
func (v Value) AsBool() bool { return v.A != 0 }

// AsInt returns the integer held by v.
func (v Value) AsInt() int64 { return v.A }

// AsPair returns the pair held by v.
func (v Value) AsPair() (int64, int64) { return v.A, v.B }

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return fmt.Sprintf("%t", v.AsBool())
	case KindInt:
		return fmt.Sprintf("%d", v.A)
	case KindPair:
		return fmt.Sprintf("(%d,%d)", v.A, v.B)
	default:
		return "invalid"
	}
}

// schema is shared by the SQL backends. ON CONFLICT upserts work on both
// SQLite (>= 3.24) and PostgreSQL.
const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS preferences (
	key        TEXT PRIMARY KEY,
	kind       INTEGER NOT NULL,
	a          BIGINT NOT NULL,
	b          BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
)
