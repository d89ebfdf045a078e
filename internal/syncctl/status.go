package syncctl

import "github.com/TimurManjosov/silencegate/internal/capability"

// FeatureState is a read-only view of one feature's machine.
type FeatureState struct {
	Feature       Feature              `json:"feature"`
	Phase         string               `json:"phase"`
	Value         bool                 `json:"value"`
	Pending       *bool                `json:"pending,omitempty"`
	Request       capability.RequestID `json:"request_id,omitempty"`
	HealthWarning bool                 `json:"health_warning"`
}

// Status is a read-only view of the whole controller.
type Status struct {
	Active   bool           `json:"active"`
	Features []FeatureState `json:"features"`
	Derived  Derived        `json:"derived"`
	Advisory Advisory       `json:"advisory"`
}

// State returns f's machine.
func (c *Controller) State(f Feature) (FeatureState, error) {
	if _, err := ParseFeature(string(f)); err != nil {
		return FeatureState{}, err
	}
	m := c.machines[f]
	st := FeatureState{
		Feature:       f,
		Phase:         m.Phase.String(),
		Value:         m.Current,
		HealthWarning: c.health[f],
	}
	if m.Phase == PhaseAwaitingGrant {
		pending := m.Pending
		st.Pending = &pending
		st.Request = m.Request
	}
	return st, nil
}

// Derived returns the last computed derived state.
func (c *Controller) Derived() Derived { return c.derived }

// Advisory returns the current advisory.
func (c *Controller) Advisory() Advisory { return c.advisory }

// Status snapshots every feature.
func (c *Controller) Status() Status {
	st := Status{Active: c.active, Derived: c.derived, Advisory: c.advisory}
	for _, f := range Features() {
		fs, _ := c.State(f)
		st.Features = append(st.Features, fs)
	}
	return st
}
