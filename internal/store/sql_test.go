package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	mydb "github.com/TimurManjosov/silencegate/internal/db"
)

// backendContract runs the behaviour every Store implementation must share.
func backendContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing key, got %v", err)
	}

	values := map[string]Value{
		"service_enabled":   Bool(true),
		"messages_checked":  Bool(false),
		"contacted":         Int(3),
		"repeated_settings": Pair(2, 10),
	}
	for k, v := range values {
		if err := s.Save(ctx, k, v); err != nil {
			t.Fatalf("Save(%s) failed: %v", k, err)
		}
	}

	for k, want := range values {
		got, err := s.Load(ctx, k)
		if err != nil {
			t.Fatalf("Load(%s) failed: %v", k, err)
		}
		if got != want {
			t.Errorf("Load(%s) = %+v, want %+v", k, got, want)
		}
	}

	// Overwrite both halves of a pair in one call
	if err := s.Save(ctx, "repeated_settings", Pair(4, 15)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := s.Load(ctx, "repeated_settings")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if a, b := got.AsPair(); a != 4 || b != 15 {
		t.Errorf("Expected (4,15), got (%d,%d)", a, b)
	}

	all, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(all) != len(values) {
		t.Errorf("Expected %d values, got %d", len(values), len(all))
	}
}

func TestSQLiteStore_Contract(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	backendContract(t, s)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.db")

	s, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := s.Save(ctx, "contacted_checked", Bool(true)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	v, err := reopened.Load(ctx, "contacted_checked")
	if err != nil {
		t.Fatalf("Load after reopen failed: %v", err)
	}
	if !v.AsBool() {
		t.Error("Expected value to survive reopen")
	}
}

func TestMemoryStore_Contract(t *testing.T) {
	backendContract(t, NewMemoryStore())
}

func TestPostgresStore_Contract(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()

	pool, err := mydb.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS preferences`); err != nil {
		t.Fatalf("reset table failed: %v", err)
	}

	s, err := NewPostgresStore(ctx, pool)
	if err != nil {
		t.Fatalf("NewPostgresStore failed: %v", err)
	}
	defer s.Close()

	backendContract(t, s)
}
