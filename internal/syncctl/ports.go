package syncctl

import (
	"context"
	"errors"

	"github.com/TimurManjosov/silencegate/internal/audit"
)

var (
	ErrUnknownFeature  = errors.New("unknown feature")
	ErrUnknownDomain   = errors.New("unknown flag-set domain")
	ErrRequestInFlight = errors.New("grant request already in flight")
	ErrInactive        = errors.New("controller is not active")
)

// AdvisoryRoleMissing is raised when the service is enabled but the
// call-screening role is no longer held.
const AdvisoryRoleMissing = "role_missing"

// Advisory is a non-blocking notice. The zero value means none.
type Advisory struct {
	Kind    string  `json:"kind,omitempty"`
	Feature Feature `json:"feature,omitempty"`
	Message string  `json:"message,omitempty"`
}

// Active reports whether an advisory is raised.
func (a Advisory) Active() bool { return a.Kind != "" }

// Derived is computed from stored preferences and never persisted.
type Derived struct {
	ReceiverShouldRun bool `json:"receiver_should_run"`
}

// Presenter receives visual updates.
type Presenter interface {
	// ShowValue sets the visual value of a toggle. Sent on every commit and
	// rollback and when a grant request starts.
	ShowValue(f Feature, value bool)
	// ShowHealth sets or clears the missing-grant mark.
	ShowHealth(f Feature, warning bool)
	// ShowAdvisory replaces the current advisory; the zero Advisory clears it.
	ShowAdvisory(a Advisory)
}

// ReceiverToggle switches the background message receiver. Implementations
// must tolerate repeated calls with the same value.
type ReceiverToggle interface {
	SetReceiverRunning(ctx context.Context, running bool)
}

// Journal records transitions.
type Journal interface {
	Log(event audit.Event)
}

type nopJournal struct{}

func (nopJournal) Log(audit.Event) {}
