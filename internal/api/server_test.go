package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/silencegate/internal/capability"
	"github.com/TimurManjosov/silencegate/internal/prefs"
	"github.com/TimurManjosov/silencegate/internal/syncctl"
	"github.com/TimurManjosov/silencegate/internal/testutil"
	"github.com/TimurManjosov/silencegate/internal/view"
)

const testAdminKey = "test-key"

var authHeader = map[string]string{"Authorization": "Bearer " + testAdminKey}

func newTestServer(t *testing.T, activate bool, granted ...capability.ID) (*testutil.Stack, *Server) {
	t.Helper()
	st := testutil.NewStack(t, granted...)
	srv := NewServer(Options{
		Loop:        st.Loop,
		Controller:  st.Controller,
		Prefs:       st.Prefs,
		Gate:        st.Gate,
		Platform:    st.Platform,
		View:        st.View,
		AdminAPIKey: testAdminKey,
		Heartbeat:   50 * time.Millisecond,
		Logger:      zerolog.Nop(),
	})
	if activate {
		st.Activate(t)
	}
	return st, srv
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return (&testutil.HTTPRequest{Method: method, Path: path, Body: body, Headers: authHeader}).Do(t, h)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func featureView(t *testing.T, snap *view.Snapshot, f syncctl.Feature) view.FeatureView {
	t.Helper()
	for _, fv := range snap.Features {
		if fv.Feature == f {
			return fv
		}
	}
	t.Fatalf("feature %s missing from snapshot", f)
	return view.FeatureView{}
}

func TestHandleHealth(t *testing.T) {
	_, srv := newTestServer(t, false)

	rr := (&testutil.HTTPRequest{Method: http.MethodGet, Path: "/healthz"}).Do(t, srv.Router())

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("Expected body 'ok', got %s", rr.Body.String())
	}
}

func TestStateEndpoint_ETag(t *testing.T) {
	_, srv := newTestServer(t, true)
	handler := srv.Router()

	rr := (&testutil.HTTPRequest{Method: http.MethodGet, Path: "/v1/state"}).Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	etag := rr.Header().Get("ETag")
	if etag == "" {
		t.Fatal("Expected ETag header to be set")
	}
	snap := decode[view.Snapshot](t, rr)
	if !snap.Active || len(snap.Features) != len(syncctl.Features()) {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}
	if len(snap.Domains) != 3 {
		t.Errorf("Expected 3 domains, got %d", len(snap.Domains))
	}

	rr = (&testutil.HTTPRequest{
		Method:  http.MethodGet,
		Path:    "/v1/state",
		Headers: map[string]string{"If-None-Match": etag},
	}).Do(t, handler)
	if rr.Code != http.StatusNotModified {
		t.Errorf("Expected status 304, got %d", rr.Code)
	}

	do(t, handler, http.MethodPost, "/v1/features/stir", `{"enabled":true}`)
	rr = (&testutil.HTTPRequest{
		Method:  http.MethodGet,
		Path:    "/v1/state",
		Headers: map[string]string{"If-None-Match": etag},
	}).Do(t, handler)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 after a change, got %d", rr.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	_, srv := newTestServer(t, true)
	handler := srv.Router()

	rr := (&testutil.HTTPRequest{Method: http.MethodPost, Path: "/v1/features/stir", Body: `{"enabled":true}`}).Do(t, handler)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}

	rr = (&testutil.HTTPRequest{
		Method:  http.MethodPost,
		Path:    "/v1/features/stir",
		Body:    `{"enabled":true}`,
		Headers: map[string]string{"Authorization": "Bearer wrong"},
	}).Do(t, handler)
	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.RequestID == "" {
		t.Error("Expected request id in error response")
	}
}

func TestSetFeature_DirectCommit(t *testing.T) {
	st, srv := newTestServer(t, true)

	rr := do(t, srv.Router(), http.MethodPost, "/v1/features/stir", `{"enabled":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[featureResponse](t, rr)
	if !resp.Value || resp.Phase != "idle" || resp.ETag == "" {
		t.Errorf("Unexpected response: %+v", resp)
	}

	stored, err := st.Prefs.Bool(context.Background(), prefs.KeyStirChecked)
	if err != nil || !stored {
		t.Errorf("Expected stir stored true, got %v, %v", stored, err)
	}
	if fv := featureView(t, st.View.Load(), syncctl.FeatureStir); !fv.Value || !fv.Stored {
		t.Errorf("Snapshot not republished: %+v", fv)
	}
}

func TestSetFeature_GrantFlow(t *testing.T) {
	st, srv := newTestServer(t, true)
	handler := srv.Router()

	rr := do(t, handler, http.MethodPost, "/v1/features/messages", `{"enabled":true}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[featureResponse](t, rr)
	if resp.Request == "" || resp.Pending == nil || !*resp.Pending || resp.Value {
		t.Fatalf("Unexpected response: %+v", resp)
	}

	// The view keeps showing the stored value while the prompt is open.
	if fv := featureView(t, st.View.Load(), syncctl.FeatureMessages); fv.Value || fv.RequestID != string(resp.Request) {
		t.Errorf("Unexpected view while awaiting: %+v", fv)
	}

	// A second request while awaiting is rejected.
	rr = do(t, handler, http.MethodPost, "/v1/features/messages", `{"enabled":false}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rr.Code)
	}

	rr = (&testutil.HTTPRequest{Method: http.MethodGet, Path: "/v1/prompts"}).Do(t, handler)
	prompts := decode[promptsResponse](t, rr)
	if len(prompts.Pending) != 1 || prompts.Pending[0].Tag != "messages" || len(prompts.Prompts) != 1 {
		t.Fatalf("Unexpected prompts: %+v", prompts)
	}

	rr = do(t, handler, http.MethodPost, "/v1/prompts/"+string(resp.Request), `{"granted":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	status := decode[syncctl.Status](t, rr)
	for _, fs := range status.Features {
		if fs.Feature == syncctl.FeatureMessages && (!fs.Value || fs.Phase != "idle") {
			t.Errorf("Expected messages committed, got %+v", fs)
		}
	}
	if !st.Platform.Has(capability.ReceiveSMS) {
		t.Error("Granting the prompt should grant RECEIVE_SMS")
	}

	rr = do(t, handler, http.MethodPost, "/v1/prompts/"+string(resp.Request), `{"granted":true}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an answered prompt, got %d", rr.Code)
	}
}

func TestSetFeature_GrantDenied(t *testing.T) {
	st, srv := newTestServer(t, true)
	handler := srv.Router()

	resp := decode[featureResponse](t, do(t, handler, http.MethodPost, "/v1/features/service", `{"enabled":true}`))
	rr := do(t, handler, http.MethodPost, "/v1/prompts/"+string(resp.Request), `{"granted":false}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	stored, _ := st.Prefs.Bool(context.Background(), prefs.KeyServiceEnabled)
	if stored {
		t.Error("Denied grant must not write the store")
	}
	if fv := featureView(t, st.View.Load(), syncctl.FeatureService); fv.Value || fv.Phase != "idle" {
		t.Errorf("Expected rollback in view, got %+v", fv)
	}
}

func TestSetFeature_Errors(t *testing.T) {
	_, srv := newTestServer(t, true)
	handler := srv.Router()

	tests := []struct {
		name string
		path string
		body string
		want int
		code ErrorCode
	}{
		{"unknown feature", "/v1/features/nope", `{"enabled":true}`, http.StatusNotFound, ErrCodeUnknownFeature},
		{"missing enabled", "/v1/features/stir", `{}`, http.StatusBadRequest, ErrCodeValidation},
		{"bad json", "/v1/features/stir", `{`, http.StatusBadRequest, ErrCodeInvalidJSON},
		{"unknown field", "/v1/features/stir", `{"enabled":true,"extra":1}`, http.StatusBadRequest, ErrCodeInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, handler, http.MethodPost, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("Expected status %d, got %d", tt.want, rr.Code)
			}
			if resp := decode[ErrorResponse](t, rr); resp.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, resp.Code)
			}
		})
	}
}

func TestInactiveRejectsRequests(t *testing.T) {
	_, srv := newTestServer(t, false)

	rr := do(t, srv.Router(), http.MethodPost, "/v1/features/stir", `{"enabled":true}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("Expected status 409, got %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != ErrCodeInactive {
		t.Errorf("Expected INACTIVE, got %s", resp.Code)
	}
}

func TestLifecycle(t *testing.T) {
	st, srv := newTestServer(t, false)
	handler := srv.Router()

	rr := do(t, handler, http.MethodPost, "/v1/lifecycle/activate", "")
	if rr.Code != http.StatusOK || !decode[syncctl.Status](t, rr).Active {
		t.Fatalf("activate: status %d", rr.Code)
	}
	if st.Prefs.ListenerCount() != 1 {
		t.Errorf("Expected one listener, got %d", st.Prefs.ListenerCount())
	}

	rr = do(t, handler, http.MethodPost, "/v1/lifecycle/deactivate", "")
	if rr.Code != http.StatusOK || decode[syncctl.Status](t, rr).Active {
		t.Fatalf("deactivate: status %d", rr.Code)
	}
	if st.Prefs.ListenerCount() != 0 {
		t.Errorf("Expected no listeners, got %d", st.Prefs.ListenerCount())
	}
	if st.View.Load().Active {
		t.Error("Snapshot should report inactive")
	}
}

func TestSetSelection(t *testing.T) {
	st, srv := newTestServer(t, true)
	handler := srv.Router()
	ctx := context.Background()

	rr := do(t, handler, http.MethodPut, "/v1/domains/groups", `{"flags":["local","mobile"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[selectionResponse](t, rr)
	if resp.Selection != 0b1010 || len(resp.Selected) != 2 {
		t.Errorf("Unexpected response: %+v", resp)
	}
	if sel, _ := st.Prefs.Selection(ctx, prefs.KeyGroups); sel != 0b1010 {
		t.Errorf("Stored selection = %#x", sel)
	}

	rr = do(t, handler, http.MethodPut, "/v1/domains/general_flag", `{"selection":5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if sel, _ := st.Prefs.Selection(ctx, prefs.KeyGeneral); sel != 5 {
		t.Errorf("Stored selection = %#x", sel)
	}

	tests := []struct {
		name, path, body string
		want             int
	}{
		{"unknown domain", "/v1/domains/nope", `{"selection":1}`, http.StatusNotFound},
		{"stray bits", "/v1/domains/contacted", `{"selection":4}`, http.StatusBadRequest},
		{"negative", "/v1/domains/contacted", `{"selection":-1}`, http.StatusBadRequest},
		{"unknown flag", "/v1/domains/contacted", `{"flags":["fax"]}`, http.StatusBadRequest},
		{"both", "/v1/domains/contacted", `{"selection":1,"flags":["call"]}`, http.StatusBadRequest},
		{"neither", "/v1/domains/contacted", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, handler, http.MethodPut, tt.path, tt.body); rr.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestSetThreshold(t *testing.T) {
	st, srv := newTestServer(t, true)
	handler := srv.Router()

	rr := do(t, handler, http.MethodPut, "/v1/threshold", `{"count":4,"minutes":10}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := st.View.Load().Threshold; got.Count != 4 || got.Minutes != 10 {
		t.Errorf("Snapshot threshold = %+v", got)
	}

	rr = do(t, handler, http.MethodPut, "/v1/threshold", `{"count":10,"minutes":5}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rr.Code)
	}
	resp := decode[ErrorResponse](t, rr)
	if resp.Code != ErrCodeValidation || resp.Fields["count"] == "" {
		t.Errorf("Unexpected error response: %+v", resp)
	}

	cfg, _ := st.Prefs.Threshold(context.Background())
	if cfg.Count != 4 || cfg.Minutes != 10 {
		t.Errorf("Invalid threshold must not reach the store, got %+v", cfg)
	}
}

func TestCapabilityRevokeRaisesHealthWarning(t *testing.T) {
	st, srv := newTestServer(t, true, capability.ReadCallLog, capability.ReadSMS)
	handler := srv.Router()

	if rr := do(t, handler, http.MethodPost, "/v1/features/contacted", `{"enabled":true}`); rr.Code != http.StatusOK {
		t.Fatalf("Expected direct commit, got %d", rr.Code)
	}

	rr := do(t, handler, http.MethodPost, "/v1/capabilities/READ_SMS/revoke", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if fv := featureView(t, st.View.Load(), syncctl.FeatureContacted); !fv.HealthWarning || !fv.Value {
		t.Errorf("Expected health warning with value kept, got %+v", fv)
	}

	rr = (&testutil.HTTPRequest{Method: http.MethodGet, Path: "/v1/capabilities"}).Do(t, handler)
	caps := decode[capabilitiesResponse](t, rr)
	if len(caps.Granted) != 1 || caps.Granted[0] != capability.ReadCallLog {
		t.Errorf("Unexpected grants: %+v", caps)
	}

	do(t, handler, http.MethodPost, "/v1/capabilities/android.permission.READ_SMS/grant", "")
	if fv := featureView(t, st.View.Load(), syncctl.FeatureContacted); fv.HealthWarning {
		t.Error("Expected health warning to clear after grant")
	}

	if rr := do(t, handler, http.MethodPost, "/v1/capabilities/CAMERA/revoke", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown capability, got %d", rr.Code)
	}
}

func TestCapabilityRevokeWhileInactive(t *testing.T) {
	st, srv := newTestServer(t, true, capability.ReadCallLog, capability.ReadSMS)
	handler := srv.Router()

	if rr := do(t, handler, http.MethodPost, "/v1/features/contacted", `{"enabled":true}`); rr.Code != http.StatusOK {
		t.Fatalf("Expected direct commit, got %d", rr.Code)
	}
	if rr := do(t, handler, http.MethodPost, "/v1/lifecycle/deactivate", ""); rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	rr := do(t, handler, http.MethodPost, "/v1/capabilities/READ_SMS/revoke", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if fv := featureView(t, st.View.Load(), syncctl.FeatureContacted); fv.HealthWarning {
		t.Error("Inactive controller must not push health updates")
	}

	if rr := do(t, handler, http.MethodPost, "/v1/lifecycle/activate", ""); rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if fv := featureView(t, st.View.Load(), syncctl.FeatureContacted); !fv.HealthWarning || !fv.Value {
		t.Errorf("Expected activation to raise the health warning, got %+v", fv)
	}
}

func TestRoleLossRaisesAdvisory(t *testing.T) {
	st, srv := newTestServer(t, true, capability.RoleCallScreening)
	handler := srv.Router()

	if rr := do(t, handler, http.MethodPost, "/v1/features/service", `{"enabled":true}`); rr.Code != http.StatusOK {
		t.Fatalf("Expected direct commit with role held, got %d", rr.Code)
	}
	do(t, handler, http.MethodPost, "/v1/capabilities/CALL_SCREENING/revoke", "")

	if adv := st.View.Load().Advisory; adv.Kind != syncctl.AdvisoryRoleMissing {
		t.Errorf("Expected role_missing advisory, got %+v", adv)
	}
}

func TestRateLimit(t *testing.T) {
	st := testutil.NewStack(t)
	srv := NewServer(Options{
		Loop: st.Loop, Controller: st.Controller, Prefs: st.Prefs, Gate: st.Gate,
		Platform: st.Platform, View: st.View, AdminAPIKey: testAdminKey,
		RateLimitPerIP: 2, Logger: zerolog.Nop(),
	})
	handler := srv.Router()

	var last int
	for i := 0; i < 3; i++ {
		last = (&testutil.HTTPRequest{Method: http.MethodGet, Path: "/healthz"}).Do(t, handler).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("Expected status 429 on the third request, got %d", last)
	}
}

func TestStream(t *testing.T) {
	_, srv := newTestServer(t, true)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/state/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected Content-Type 'text/event-stream', got %s", ct)
	}

	events := make(chan string, 16)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "event:") || strings.HasPrefix(line, ": ping") {
				events <- line
			}
		}
	}()

	waitFor := func(want string) {
		t.Helper()
		for {
			select {
			case line, ok := <-events:
				if !ok {
					t.Fatalf("stream closed before %q", want)
				}
				if strings.Contains(line, want) {
					return
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitFor("event: init")

	rr := do(t, srv.Router(), http.MethodPost, "/v1/features/groups", `{"enabled":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	waitFor("event: update")
	waitFor(": ping")
}
