package capability

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/silencegate/internal/telemetry"
)

// RequestID identifies one grant prompt.
type RequestID string

// Platform is the OS permission and role primitive.
//
// Prompt and PromptRole open a prompt and return immediately. The decision is
// delivered later, by whoever hosts the platform, through Gate.Resolve with
// the same RequestID.
type Platform interface {
	Has(id ID) bool
	HasRole() bool
	Prompt(req RequestID, ids []ID) error
	PromptRole(req RequestID) error
}

// Request describes an in-flight grant prompt.
type Request struct {
	ID           RequestID `json:"id"`
	Tag          string    `json:"feature"`
	Capabilities []ID      `json:"capabilities"`
	Role         bool      `json:"role"`
	OpenedAt     time.Time `json:"opened_at"`
}

// Result is a resolved prompt.
type Result struct {
	Request Request
	Granted bool
}

// Gate queries and requests capabilities. Besides the platform it only holds
// the in-flight request ids; each carries the tag of the feature that opened it.
type Gate struct {
	platform Platform
	log      zerolog.Logger
	newID    func() RequestID
	now      func() time.Time

	mu       sync.Mutex
	inflight map[RequestID]Request
}

// NewGate wraps a platform.
func NewGate(platform Platform, log zerolog.Logger) *Gate {
	return &Gate{
		platform: platform,
		log:      log.With().Str("component", "capability").Logger(),
		newID:    func() RequestID { return RequestID(uuid.NewString()) },
		now:      time.Now,
		inflight: make(map[RequestID]Request),
	}
}

// HasCapabilities reports whether every id is currently granted. An empty set
// is always satisfied.
func (g *Gate) HasCapabilities(ids []ID) bool {
	for _, id := range ids {
		if !g.platform.Has(id) {
			return false
		}
	}
	return true
}

// HasPrivilegedRole reports whether the call-screening role is held.
func (g *Gate) HasPrivilegedRole() bool {
	return g.platform.HasRole()
}

// RequestCapabilities opens one prompt covering all ids.
func (g *Gate) RequestCapabilities(tag string, ids []ID) (RequestID, error) {
	req := Request{ID: g.newID(), Tag: tag, Capabilities: normalize(ids), OpenedAt: g.now()}
	if err := g.platform.Prompt(req.ID, req.Capabilities); err != nil {
		return "", fmt.Errorf("prompt %v: %w", req.Capabilities, err)
	}
	g.track(req)
	return req.ID, nil
}

// RequestPrivilegedRole opens the call-screening role prompt.
func (g *Gate) RequestPrivilegedRole(tag string) (RequestID, error) {
	req := Request{ID: g.newID(), Tag: tag, Capabilities: []ID{RoleCallScreening}, Role: true, OpenedAt: g.now()}
	if err := g.platform.PromptRole(req.ID); err != nil {
		return "", fmt.Errorf("prompt role: %w", err)
	}
	g.track(req)
	return req.ID, nil
}

func (g *Gate) track(req Request) {
	g.mu.Lock()
	g.inflight[req.ID] = req
	n := len(g.inflight)
	g.mu.Unlock()

	telemetry.PendingGrants.Set(float64(n))
	g.log.Info().Str("request_id", string(req.ID)).Str("feature", req.Tag).
		Interface("capabilities", req.Capabilities).Msg("grant prompt opened")
}

// Resolve consumes the result of a prompt. A grant only counts when the
// platform now reports every requested capability, so a partial grant
// resolves as denied. A dismissed prompt is resolved with granted=false.
func (g *Gate) Resolve(id RequestID, granted bool) (Result, error) {
	g.mu.Lock()
	req, ok := g.inflight[id]
	if ok {
		delete(g.inflight, id)
	}
	n := len(g.inflight)
	g.mu.Unlock()

	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	telemetry.PendingGrants.Set(float64(n))

	if granted {
		if req.Role {
			granted = g.platform.HasRole()
		} else {
			granted = g.HasCapabilities(req.Capabilities)
		}
	}

	g.log.Info().Str("request_id", string(id)).Str("feature", req.Tag).
		Bool("granted", granted).Msg("grant prompt resolved")
	return Result{Request: req, Granted: granted}, nil
}

// Pending returns the in-flight requests, oldest first.
func (g *Gate) Pending() []Request {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Request, 0, len(g.inflight))
	for _, r := range g.inflight {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Request) int { return a.OpenedAt.Compare(b.OpenedAt) })
	return out
}

// InFlight reports whether id is awaiting a result.
func (g *Gate) InFlight(id RequestID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inflight[id]
	return ok
}
