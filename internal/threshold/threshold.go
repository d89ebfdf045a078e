// Package threshold holds the repeated-call threshold: "more than Count calls
// within Minutes". A configuration is accepted only when 0 < Count < Minutes.
package threshold

import (
	"errors"
	"fmt"
)

// ErrInvalidDraft is returned when a draft that does not satisfy Count < Minutes is confirmed.
var ErrInvalidDraft = errors.New("invalid threshold draft")

const (
	DefaultCount   = 3
	DefaultMinutes = 5
)

// CountChoices and MinuteChoices are the values offered by the settings dialog.
var (
	CountChoices  = []int{2, 3, 4, 5, 6, 7, 8, 9, 10}
	MinuteChoices = []int{3, 5, 10, 15, 20, 30, 60}
)

// Config is a committed threshold.
type Config struct {
	Count   int `json:"count" yaml:"count"`
	Minutes int `json:"minutes" yaml:"minutes"`
}

// Default returns the threshold used before anything was stored.
func Default() Config {
	return Config{Count: DefaultCount, Minutes: DefaultMinutes}
}

// Validate reports whether the pair may be committed.
func Validate(count, minutes int) bool {
	return count > 0 && minutes > 0 && count < minutes
}

// Valid reports whether c may be committed.
func (c Config) Valid() bool { return Validate(c.Count, c.Minutes) }

// Err returns nil for a valid config and a wrapped ErrInvalidDraft otherwise.
func (c Config) Err() error {
	if c.Valid() {
		return nil
	}
	return fmt.Errorf("%w: count %d must be positive and less than minutes %d", ErrInvalidDraft, c.Count, c.Minutes)
}

func (c Config) String() string {
	return fmt.Sprintf("more than %d calls within %d minutes", c.Count, c.Minutes)
}

// Draft holds edits from the settings dialog until they are confirmed.
type Draft struct {
	stored  Config
	current Config
}

// NewDraft starts an edit from the stored configuration.
func NewDraft(stored Config) *Draft {
	return &Draft{stored: stored, current: stored}
}

// SetCount updates the draft count.
func (d *Draft) SetCount(count int) { d.current.Count = count }

// SetMinutes updates the draft minutes.
func (d *Draft) SetMinutes(minutes int) { d.current.Minutes = minutes }

// Current returns the edited pair.
func (d *Draft) Current() Config { return d.current }

// CanConfirm mirrors the enabled state of the dialog's confirm button.
func (d *Draft) CanConfirm() bool { return d.current.Valid() }

// Dirty reports whether the draft differs from the stored configuration.
func (d *Draft) Dirty() bool { return d.current != d.stored }

// Confirm returns the pair to commit, or ErrInvalidDraft.
func (d *Draft) Confirm() (Config, error) {
	if err := d.current.Err(); err != nil {
		return Config{}, err
	}
	return d.current, nil
}
