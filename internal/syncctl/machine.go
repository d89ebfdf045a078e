package syncctl

import "github.com/TimurManjosov/silencegate/internal/capability"

// Phase of a feature's state machine.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseAwaitingGrant
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingGrant:
		return "awaiting_grant"
	default:
		return "unknown"
	}
}

// Effect is what the controller must do after a transition.
type Effect uint8

const (
	EffectNone Effect = iota
	EffectCommit
	EffectRequestGrant
	EffectRollback
)

func (e Effect) String() string {
	switch e {
	case EffectCommit:
		return "commit"
	case EffectRequestGrant:
		return "request_grant"
	case EffectRollback:
		return "rollback"
	default:
		return "none"
	}
}

// Machine is one feature's state. Transitions are pure: they return the next
// machine and an effect and never touch the store.
type Machine struct {
	Phase   Phase
	Current bool
	Pending bool
	Request capability.RequestID
}

// Idle returns a machine at rest on current.
func Idle(current bool) Machine {
	return Machine{Phase: PhaseIdle, Current: current}
}

// Ask handles a user asking for desired. satisfied reports whether the
// capabilities desired needs are already held.
func (m Machine) Ask(desired, satisfied bool) (Machine, Effect, error) {
	if m.Phase == PhaseAwaitingGrant {
		return m, EffectNone, ErrRequestInFlight
	}
	if desired && !satisfied {
		return Machine{Phase: PhaseAwaitingGrant, Current: m.Current, Pending: desired}, EffectRequestGrant, nil
	}
	return Idle(desired), EffectCommit, nil
}

// Resolve handles the grant result. Outside AwaitingGrant it does nothing.
func (m Machine) Resolve(granted bool) (Machine, Effect) {
	if m.Phase != PhaseAwaitingGrant {
		return m, EffectNone
	}
	if granted {
		return Idle(m.Pending), EffectCommit
	}
	return Idle(m.Current), EffectRollback
}
