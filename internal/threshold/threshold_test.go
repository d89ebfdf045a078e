package threshold

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		minutes int
		want    bool
	}{
		{"count below minutes", 2, 10, true},
		{"defaults", DefaultCount, DefaultMinutes, true},
		{"count equals minutes", 5, 5, false},
		{"count above minutes", 5, 3, false},
		{"zero count", 0, 5, false},
		{"negative minutes", 1, -5, false},
		{"both zero", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Validate(tt.count, tt.minutes); got != tt.want {
				t.Errorf("Validate(%d, %d) = %v, want %v", tt.count, tt.minutes, got, tt.want)
			}
		})
	}
}

func TestDraft_ConfirmGate(t *testing.T) {
	draft := NewDraft(Default())
	if !draft.CanConfirm() {
		t.Fatal("Default threshold should be confirmable")
	}

	draft.SetCount(5)
	draft.SetMinutes(3)
	if draft.CanConfirm() {
		t.Error("count=5 minutes=3 must disable confirmation")
	}
	if _, err := draft.Confirm(); !errors.Is(err, ErrInvalidDraft) {
		t.Errorf("Expected ErrInvalidDraft, got %v", err)
	}

	draft.SetCount(2)
	draft.SetMinutes(10)
	if !draft.CanConfirm() {
		t.Error("count=2 minutes=10 must enable confirmation")
	}
	cfg, err := draft.Confirm()
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if cfg != (Config{Count: 2, Minutes: 10}) {
		t.Errorf("Unexpected confirmed config: %+v", cfg)
	}
}

func TestDraft_Dirty(t *testing.T) {
	draft := NewDraft(Config{Count: 3, Minutes: 5})
	if draft.Dirty() {
		t.Error("Fresh draft should not be dirty")
	}
	draft.SetMinutes(10)
	if !draft.Dirty() {
		t.Error("Edited draft should be dirty")
	}
	draft.SetMinutes(5)
	if draft.Dirty() {
		t.Error("Draft edited back to stored value should not be dirty")
	}
}

func TestChoicesContainDefaults(t *testing.T) {
	found := 0
	for _, c := range CountChoices {
		if c == DefaultCount {
			found++
		}
	}
	for _, m := range MinuteChoices {
		if m == DefaultMinutes {
			found++
		}
	}
	if found != 2 {
		t.Errorf("Defaults should be offered as dialog choices")
	}
}
