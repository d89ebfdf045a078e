package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/TimurManjosov/silencegate/internal/bitmask"
	"github.com/TimurManjosov/silencegate/internal/capability"
	"github.com/TimurManjosov/silencegate/internal/syncctl"
	"github.com/TimurManjosov/silencegate/internal/threshold"
	"github.com/TimurManjosov/silencegate/internal/validation"
)

// ---- read ----

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap := s.view.Load()
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == snap.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", snap.ETag)
	writeJSON(w, http.StatusOK, snap)
}

type promptsResponse struct {
	Pending []capability.Request `json:"pending"`
	Prompts []capability.Prompt  `json:"prompts"`
}

func (s *Server) handleListPrompts(w http.ResponseWriter, _ *http.Request) {
	resp := promptsResponse{
		Pending: s.gate.Pending(),
		Prompts: s.platform.Prompts(),
	}
	if resp.Pending == nil {
		resp.Pending = []capability.Request{}
	}
	if resp.Prompts == nil {
		resp.Prompts = []capability.Prompt{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type capabilitiesResponse struct {
	Known    []capability.ID `json:"known"`
	Granted  []capability.ID `json:"granted"`
	RoleHeld bool            `json:"role_held"`
}

func (s *Server) handleListCapabilities(w http.ResponseWriter, _ *http.Request) {
	granted := s.platform.Granted()
	if granted == nil {
		granted = []capability.ID{}
	}
	writeJSON(w, http.StatusOK, capabilitiesResponse{
		Known:    capability.Known(),
		Granted:  granted,
		RoleHeld: s.platform.HasRole(),
	})
}

// ---- toggles ----

type featureRequest struct {
	Enabled *bool `json:"enabled"`
}

type featureResponse struct {
	syncctl.FeatureState
	ETag string `json:"etag"`
}

// handleSetFeature answers 200 when the request committed or was rejected
// back to the stored value and 202 while a grant prompt is open.
func (s *Server) handleSetFeature(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "feature")
	if res := validation.ValidateFeature(name); !res.Valid {
		NotFoundError(w, r, ErrCodeUnknownFeature, res.Errors["feature"])
		return
	}
	f := syncctl.Feature(strings.TrimSpace(name))

	var req featureRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		ValidationError(w, r, "Validation failed", map[string]string{"enabled": "Enabled is required"})
		return
	}

	var st syncctl.FeatureState
	err := s.run(r.Context(), func(ctx context.Context) error {
		err := s.ctl.OnUserRequest(ctx, f, *req.Enabled)
		st, _ = s.ctl.State(f)
		return err
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	code := http.StatusOK
	if st.Phase == syncctl.PhaseAwaitingGrant.String() {
		code = http.StatusAccepted
	}
	writeJSON(w, code, featureResponse{FeatureState: st, ETag: s.view.Load().ETag})
}

// ---- flag sets ----

// selectionRequest carries either the raw integer or flag names.
type selectionRequest struct {
	Selection *int64   `json:"selection,omitempty"`
	Flags     []string `json:"flags,omitempty"`
}

type selectionResponse struct {
	Domain    string   `json:"domain"`
	Selection uint32   `json:"selection"`
	Selected  []string `json:"selected"`
	ETag      string   `json:"etag"`
}

func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	desc, ok := bitmask.Lookup(domain)
	if !ok {
		NotFoundError(w, r, ErrCodeUnknownDomain, "domain must be one of "+strings.Join(bitmask.Names(), ", "))
		return
	}

	var req selectionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var sel bitmask.Selection
	switch {
	case req.Selection != nil && req.Flags != nil:
		ValidationError(w, r, "Validation failed", map[string]string{"selection": "Use either selection or flags, not both"})
		return
	case req.Flags != nil:
		var err error
		if sel, err = bitmask.SelectionOf(desc, req.Flags...); err != nil {
			ValidationError(w, r, "Validation failed", map[string]string{"flags": err.Error()})
			return
		}
	case req.Selection != nil:
		if res := validation.ValidateSelection(domain, *req.Selection); !res.Valid {
			ValidationError(w, r, "Validation failed", res.Errors)
			return
		}
		sel = bitmask.Selection(*req.Selection)
	default:
		ValidationError(w, r, "Validation failed", map[string]string{"selection": "Selection or flags is required"})
		return
	}

	err := s.run(r.Context(), func(ctx context.Context) error {
		return s.ctl.OnMultiSelectConfirm(ctx, domain, sel)
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse{
		Domain:    domain,
		Selection: uint32(sel),
		Selected:  bitmask.LabelsOf(desc, sel),
		ETag:      s.view.Load().ETag,
	})
}

// ---- threshold ----

type thresholdRequest struct {
	Count   int `json:"count"`
	Minutes int `json:"minutes"`
}

type thresholdResponse struct {
	threshold.Config
	Description string `json:"description"`
	ETag        string `json:"etag"`
}

func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if res := validation.ValidateThreshold(req.Count, req.Minutes); !res.Valid {
		ValidationError(w, r, "Validation failed", res.Errors)
		return
	}

	cfg := threshold.Config{Count: req.Count, Minutes: req.Minutes}
	err := s.run(r.Context(), func(ctx context.Context) error {
		return s.ctl.OnThresholdConfirm(ctx, cfg.Count, cfg.Minutes)
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thresholdResponse{Config: cfg, Description: cfg.String(), ETag: s.view.Load().ETag})
}

// ---- platform ----

type answerRequest struct {
	Granted *bool `json:"granted"`
}

// handleAnswerPrompt answers an open prompt on the platform and delivers the
// result to the controller in the same loop task.
func (s *Server) handleAnswerPrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if res := validation.ValidateRequestID(id); !res.Valid {
		ValidationError(w, r, "Validation failed", res.Errors)
		return
	}
	var req answerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Granted == nil {
		ValidationError(w, r, "Validation failed", map[string]string{"granted": "Granted is required"})
		return
	}

	reqID := capability.RequestID(id)
	var st syncctl.Status
	err := s.run(r.Context(), func(ctx context.Context) error {
		if err := s.platform.Answer(reqID, *req.Granted); err != nil {
			return err
		}
		err := s.ctl.OnGrantResult(ctx, reqID, *req.Granted)
		st = s.ctl.Status()
		return err
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleCapability grants or revokes a capability outside of any prompt, as
// the system settings screen would, then re-runs every check while active.
func (s *Server) handleCapability(grant bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, id := validation.ValidateCapability(chi.URLParam(r, "id"))
		if !res.Valid {
			ValidationError(w, r, "Validation failed", res.Errors)
			return
		}

		var st syncctl.Status
		err := s.run(r.Context(), func(ctx context.Context) error {
			if grant {
				s.platform.Grant(id)
			} else {
				s.platform.Revoke(id)
			}
			st = s.ctl.Status()
			if !s.ctl.Active() {
				// OnActivate resyncs everything.
				return nil
			}
			err := s.ctl.Update(ctx)
			st = s.ctl.Status()
			return err
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// ---- lifecycle ----

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var st syncctl.Status
	err := s.run(r.Context(), func(ctx context.Context) error {
		err := s.ctl.OnActivate(ctx)
		st = s.ctl.Status()
		return err
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	var st syncctl.Status
	err := s.run(r.Context(), func(ctx context.Context) error {
		s.ctl.OnDeactivate(ctx)
		st = s.ctl.Status()
		return nil
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
