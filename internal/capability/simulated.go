package capability

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Prompt is an open prompt on the simulated platform.
type Prompt struct {
	ID           RequestID `json:"id"`
	Capabilities []ID      `json:"capabilities"`
	Role         bool      `json:"role"`
	OpenedAt     time.Time `json:"opened_at"`
}

// SimulatedPlatform is an in-process Platform. Grants and the role are held
// in memory; prompts stay open until Answer is called for them.
type SimulatedPlatform struct {
	log zerolog.Logger

	mu      sync.Mutex
	granted map[ID]bool
	role    bool
	prompts map[RequestID]Prompt
}

// NewSimulatedPlatform starts with the given capabilities granted.
// RoleCallScreening in granted means the role is held.
func NewSimulatedPlatform(log zerolog.Logger, granted ...ID) *SimulatedPlatform {
	p := &SimulatedPlatform{
		log:     log.With().Str("component", "platform").Logger(),
		granted: make(map[ID]bool),
		prompts: make(map[RequestID]Prompt),
	}
	for _, id := range granted {
		p.set(id, true)
	}
	return p
}

func (p *SimulatedPlatform) set(id ID, on bool) {
	if id == RoleCallScreening {
		p.role = on
		return
	}
	if on {
		p.granted[id] = true
	} else {
		delete(p.granted, id)
	}
}

func (p *SimulatedPlatform) Has(id ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id == RoleCallScreening {
		return p.role
	}
	return p.granted[id]
}

func (p *SimulatedPlatform) HasRole() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.role
}

func (p *SimulatedPlatform) Prompt(req RequestID, ids []ID) error {
	return p.open(Prompt{ID: req, Capabilities: slices.Clone(ids), OpenedAt: time.Now()})
}

func (p *SimulatedPlatform) PromptRole(req RequestID) error {
	return p.open(Prompt{ID: req, Capabilities: []ID{RoleCallScreening}, Role: true, OpenedAt: time.Now()})
}

func (p *SimulatedPlatform) open(pr Prompt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.prompts[pr.ID]; dup {
		return fmt.Errorf("prompt %s already open", pr.ID)
	}
	p.prompts[pr.ID] = pr
	p.log.Debug().Str("request_id", string(pr.ID)).Interface("capabilities", pr.Capabilities).Msg("prompt shown")
	return nil
}

// Answer closes a prompt. A granted answer grants everything it asked for.
func (p *SimulatedPlatform) Answer(req RequestID, granted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pr, ok := p.prompts[req]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, req)
	}
	delete(p.prompts, req)
	if granted {
		for _, id := range pr.Capabilities {
			p.set(id, true)
		}
	}
	p.log.Debug().Str("request_id", string(req)).Bool("granted", granted).Msg("prompt answered")
	return nil
}

// Prompts lists open prompts, oldest first.
func (p *SimulatedPlatform) Prompts() []Prompt {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Prompt, 0, len(p.prompts))
	for _, pr := range p.prompts {
		out = append(out, pr)
	}
	slices.SortFunc(out, func(a, b Prompt) int { return a.OpenedAt.Compare(b.OpenedAt) })
	return out
}

// Grant grants id outside of any prompt, as if from system settings.
func (p *SimulatedPlatform) Grant(id ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set(id, true)
	p.log.Info().Str("capability", string(id)).Msg("capability granted")
}

// Revoke withdraws id, as if from system settings.
func (p *SimulatedPlatform) Revoke(id ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set(id, false)
	p.log.Info().Str("capability", string(id)).Msg("capability revoked")
}

// Granted lists the granted ids in Known order.
func (p *SimulatedPlatform) Granted() []ID {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []ID
	for _, id := range Known() {
		if (id == RoleCallScreening && p.role) || p.granted[id] {
			out = append(out, id)
		}
	}
	return out
}
