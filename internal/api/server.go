// Package api exposes the sync controller over HTTP. Every state-changing
// request runs as one task on the event loop, and the view is republished
// after each task.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/silencegate/internal/capability"
	"github.com/TimurManjosov/silencegate/internal/eventloop"
	"github.com/TimurManjosov/silencegate/internal/prefs"
	"github.com/TimurManjosov/silencegate/internal/syncctl"
	"github.com/TimurManjosov/silencegate/internal/telemetry"
	"github.com/TimurManjosov/silencegate/internal/view"
)

const (
	maxRequestBodySize = 64 << 10
	requestTimeout     = 5 * time.Second
	defaultHeartbeat   = 15 * time.Second
)

// Platform is the operator surface of the simulated platform.
type Platform interface {
	Prompts() []capability.Prompt
	Answer(req capability.RequestID, granted bool) error
	Grant(id capability.ID)
	Revoke(id capability.ID)
	Granted() []capability.ID
	HasRole() bool
}

type Options struct {
	Loop        *eventloop.Loop
	Controller  *syncctl.Controller
	Prefs       *prefs.FlagStore
	Gate        *capability.Gate
	Platform    Platform
	View        *view.View
	AdminAPIKey string
	// RateLimitPerIP is requests per minute; zero disables limiting.
	RateLimitPerIP int
	Heartbeat      time.Duration
	Logger         zerolog.Logger
}

type Server struct {
	loop        *eventloop.Loop
	ctl         *syncctl.Controller
	prefs       *prefs.FlagStore
	gate        *capability.Gate
	platform    Platform
	view        *view.View
	adminAPIKey string
	rateLimit   int
	heartbeat   time.Duration
	log         zerolog.Logger
}

func NewServer(opts Options) *Server {
	hb := opts.Heartbeat
	if hb <= 0 {
		hb = defaultHeartbeat
	}
	return &Server{
		loop:        opts.Loop,
		ctl:         opts.Controller,
		prefs:       opts.Prefs,
		gate:        opts.Gate,
		platform:    opts.Platform,
		view:        opts.View,
		adminAPIKey: opts.AdminAPIKey,
		rateLimit:   opts.RateLimitPerIP,
		heartbeat:   hb,
		log:         opts.Logger.With().Str("component", "api").Logger(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware)
	if s.rateLimit > 0 {
		r.Use(httprate.Limit(s.rateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
				errResp := NewErrorResponse(http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
				writeErrorResponse(w, req, http.StatusTooManyRequests, errResp)
			}),
		))
	}

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// long-lived; outside the request timeout
	r.Get("/v1/state/stream", s.handleStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/v1/state", s.handleState)
		r.Get("/v1/prompts", s.handleListPrompts)
		r.Get("/v1/capabilities", s.handleListCapabilities)

		r.Group(func(r chi.Router) {
			r.Use(s.authAdmin)
			r.Post("/v1/features/{feature}", s.handleSetFeature)
			r.Put("/v1/domains/{domain}", s.handleSetSelection)
			r.Put("/v1/threshold", s.handleSetThreshold)
			r.Post("/v1/prompts/{id}", s.handleAnswerPrompt)
			r.Post("/v1/capabilities/{id}/grant", s.handleCapability(true))
			r.Post("/v1/capabilities/{id}/revoke", s.handleCapability(false))
			r.Post("/v1/lifecycle/activate", s.handleActivate)
			r.Post("/v1/lifecycle/deactivate", s.handleDeactivate)
		})
	})

	return r
}

// run executes fn as one loop task and republishes the view afterwards, also
// when fn fails, so the visual state that fn forced back is visible.
func (s *Server) run(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.loop.Do(ctx, func(ctx context.Context) error {
		err := fn(ctx)
		s.publish(ctx)
		return err
	})
}

// Refresh republishes the view on the loop.
func (s *Server) Refresh(ctx context.Context) error {
	return s.run(ctx, func(context.Context) error { return nil })
}

// publish must run on the loop.
func (s *Server) publish(ctx context.Context) {
	settings, err := view.Collect(ctx, s.prefs)
	if err != nil {
		s.log.Error().Err(err).Msg("view not published")
		return
	}
	s.view.Publish(s.ctl.Status(), settings)
}

// ---- middleware & helpers ----

func (s *Server) authAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
		if got == "" {
			UnauthorizedError(w, r, "missing bearer token")
			return
		}
		// constant-time compare
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminAPIKey)) != 1 {
			ForbiddenError(w, r, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// decodeBody decodes a bounded JSON body into v and writes the error response
// itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RequestTooLargeError(w, r, "request body too large")
			return false
		}
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
