// Package testutil assembles an in-memory stack for tests of the outer
// surfaces.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/silencegate/internal/audit"
	"github.com/TimurManjosov/silencegate/internal/capability"
	"github.com/TimurManjosov/silencegate/internal/eventloop"
	"github.com/TimurManjosov/silencegate/internal/prefs"
	"github.com/TimurManjosov/silencegate/internal/receiver"
	"github.com/TimurManjosov/silencegate/internal/store"
	"github.com/TimurManjosov/silencegate/internal/syncctl"
	"github.com/TimurManjosov/silencegate/internal/view"
)

// Stack is a controller wired to in-memory collaborators.
type Stack struct {
	Store      *store.MemoryStore
	Prefs      *prefs.FlagStore
	Platform   *capability.SimulatedPlatform
	Gate       *capability.Gate
	View       *view.View
	Receiver   *receiver.LocalToggle
	Journal    *audit.Service
	Sink       *audit.MemorySink
	Controller *syncctl.Controller
	Loop       *eventloop.Loop
}

// NewStack builds an inactive stack with the given capabilities granted.
// Everything is closed when the test ends.
func NewStack(t *testing.T, granted ...capability.ID) *Stack {
	t.Helper()
	log := zerolog.Nop()

	s := &Stack{
		Store: store.NewMemoryStore(),
		View:  view.New(),
		Sink:  &audit.MemorySink{},
		Loop:  eventloop.New(16),
	}
	s.Prefs = prefs.New(s.Store, log)
	s.Platform = capability.NewSimulatedPlatform(log, granted...)
	s.Gate = capability.NewGate(s.Platform, log)
	s.Receiver = receiver.NewLocalToggle(log)
	s.Journal = audit.NewService(s.Sink, log, audit.SystemClock{}, audit.UUIDGenerator{}, audit.NewDefaultRedactor(), 64)
	s.Controller = syncctl.New(syncctl.Options{
		Prefs:     s.Prefs,
		Gate:      s.Gate,
		Presenter: s.View,
		Receiver:  s.Receiver,
		Journal:   s.Journal,
		Logger:    log,
	})

	t.Cleanup(func() {
		_ = s.Loop.Close()
		_ = s.Journal.Close()
		_ = s.Prefs.Close()
	})
	return s
}

// Activate runs OnActivate on the loop and publishes the view.
func (s *Stack) Activate(t *testing.T) {
	t.Helper()
	err := s.Loop.Do(context.Background(), func(ctx context.Context) error {
		if err := s.Controller.OnActivate(ctx); err != nil {
			return err
		}
		return s.Publish(ctx)
	})
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
}

// Publish pushes the controller status into the view. Call it on the loop.
func (s *Stack) Publish(ctx context.Context) error {
	settings, err := view.Collect(ctx, s.Prefs)
	if err != nil {
		return err
	}
	s.View.Publish(s.Controller.Status(), settings)
	return nil
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// SeedPreferences writes values straight to the backend, bypassing listeners.
func SeedPreferences(ctx context.Context, st store.Store, values map[prefs.Key]store.Value) error {
	for k, v := range values {
		if err := st.Save(ctx, string(k), v); err != nil {
			return err
		}
	}
	return nil
}
