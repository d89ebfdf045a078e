package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_SaveAndLoad(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, "service_enabled", Bool(true)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	v, err := store.Load(ctx, "service_enabled")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v.Kind != KindBool {
		t.Errorf("Expected kind bool, got %s", v.Kind)
	}
	if !v.AsBool() {
		t.Error("Expected true, got false")
	}
}

func TestMemoryStore_Overwrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, "groups", Int(3)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, "groups", Int(16)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	v, err := store.Load(ctx, "groups")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v.AsInt() != 16 {
		t.Errorf("Expected 16, got %d", v.AsInt())
	}
	if store.Saves() != 2 {
		t.Errorf("Expected 2 saves, got %d", store.Saves())
	}
}

func TestMemoryStore_PairIsOneValue(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, "repeated_settings", Pair(2, 10)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	v, err := store.Load(ctx, "repeated_settings")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	a, b := v.AsPair()
	if a != 2 || b != 10 {
		t.Errorf("Expected (2,10), got (%d,%d)", a, b)
	}
}

func TestMemoryStore_LoadMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Load(context.Background(), "non-existent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_LoadAllReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Save(ctx, "a", Bool(true))
	_ = store.Save(ctx, "b", Int(7))

	all, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 values, got %d", len(all))
	}

	all["a"] = Bool(false)
	v, _ := store.Load(ctx, "a")
	if !v.AsBool() {
		t.Error("Mutating LoadAll result must not affect the store")
	}
}

func TestMemoryStore_Close(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Int(42), "42"},
		{Pair(3, 5), "(3,5)"},
		{Value{}, "invalid"},
	}

	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
