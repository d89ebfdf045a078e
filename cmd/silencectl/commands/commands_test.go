package commands

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/silencegate/internal/api"
	"github.com/TimurManjosov/silencegate/internal/testutil"
)

func newServer(t *testing.T) (*testutil.Stack, string) {
	t.Helper()
	st := testutil.NewStack(t)
	st.Activate(t)
	srv := api.NewServer(api.Options{
		Loop:        st.Loop,
		Controller:  st.Controller,
		Prefs:       st.Prefs,
		Gate:        st.Gate,
		Platform:    st.Platform,
		View:        st.View,
		AdminAPIKey: "k",
		Logger:      zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return st, ts.URL
}

// run executes silencectl with args against url and returns stdout.
func run(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	// Reset flag state shared between runs.
	format, quiet, profile = "table", false, ""
	answerGrant, answerDeny = false, false
	selectValue = 0
	thresholdChoices = false
	selectCheck, selectUncheck = nil, nil
	if f := selectCmd.Flags().Lookup("value"); f != nil {
		f.Changed = false
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	full := append([]string{"--base-url", url, "--api-key", "k"}, args...)
	rootCmd.SetArgs(full)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSetAndState(t *testing.T) {
	_, url := newServer(t)

	out, err := run(t, url, "set", "stir", "on")
	if err != nil {
		t.Fatalf("set failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "'stir' is now on") {
		t.Errorf("Unexpected output: %s", out)
	}

	out, err = run(t, url, "state", "--format", "json")
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	if !strings.Contains(out, `"feature": "stir"`) {
		t.Errorf("Unexpected state output: %s", out)
	}
}

func TestPromptAnswerFlow(t *testing.T) {
	st, url := newServer(t)

	out, err := run(t, url, "set", "messages", "on")
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if !strings.Contains(out, "Capability prompt opened") {
		t.Fatalf("Expected prompt, got: %s", out)
	}

	pending := st.Gate.Pending()
	if len(pending) != 1 {
		t.Fatalf("Expected one pending request, got %d", len(pending))
	}
	id := string(pending[0].ID)

	if _, err := run(t, url, "answer", id); err == nil {
		t.Error("Expected error without --grant or --deny")
	}
	if out, err := run(t, url, "answer", id, "--grant"); err != nil {
		t.Fatalf("answer failed: %v\n%s", err, out)
	}
	if len(st.Gate.Pending()) != 0 {
		t.Error("Expected the request to be resolved")
	}
}

func TestSelectAndThreshold(t *testing.T) {
	_, url := newServer(t)

	out, err := run(t, url, "select", "groups", "local", "mobile")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if !strings.Contains(out, "groups = 0xa") {
		t.Errorf("Unexpected output: %s", out)
	}

	if _, err := run(t, url, "select", "groups", "fax"); err == nil {
		t.Error("Expected unknown flag error")
	}
	if _, err := run(t, url, "select", "contacted", "--value", "4"); err == nil {
		t.Error("Expected stray bit error")
	}

	out, err = run(t, url, "select", "groups", "--check", "toll_free", "--uncheck", "mobile")
	if err != nil || !strings.Contains(out, "groups = 0x3: toll_free, local") {
		t.Errorf("edit: %v, %s", err, out)
	}
	out, err = run(t, url, "select", "groups", "--check", "local")
	if err != nil || !strings.Contains(out, "groups unchanged") {
		t.Errorf("no-op edit: %v, %s", err, out)
	}
	if _, err := run(t, url, "select", "groups", "--check", "fax"); err == nil {
		t.Error("Expected unknown flag error on edit")
	}
	if _, err := run(t, url, "select", "groups", "local", "--check", "mobile"); err == nil {
		t.Error("Expected error when mixing names and edits")
	}

	out, err = run(t, url, "threshold", "4", "10")
	if err != nil || !strings.Contains(out, "more than 4 calls within 10 minutes") {
		t.Errorf("threshold: %v, %s", err, out)
	}
	if _, err := run(t, url, "threshold", "10", "4"); err == nil {
		t.Error("Expected invalid threshold error")
	}
	if _, err := run(t, url, "threshold", "4"); err == nil {
		t.Error("Expected missing minutes error")
	}

	out, err = run(t, url, "threshold", "--choices")
	if err != nil || !strings.Contains(out, "minutes: 3, 5, 10, 15, 20, 30, 60") {
		t.Errorf("choices: %v, %s", err, out)
	}
}

func TestRevokeAndLifecycle(t *testing.T) {
	st, url := newServer(t)

	if _, err := run(t, url, "grant", "READ_SMS"); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if _, err := run(t, url, "revoke", "CAMERA"); err == nil {
		t.Error("Expected invalid capability error")
	}
	if _, err := run(t, url, "deactivate"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if st.Controller.Active() {
		t.Error("Expected controller to be inactive")
	}
	if _, err := run(t, url, "set", "stir", "on"); err == nil {
		t.Error("Expected error while inactive")
	}
	if _, err := run(t, url, "activate"); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
}

func TestParseOnOff(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "OFF": false, "true": true, "0": false, "enable": true} {
		got, err := parseOnOff(in)
		if err != nil || got != want {
			t.Errorf("parseOnOff(%s) = %v, %v", in, got, err)
		}
	}
	if _, err := parseOnOff("maybe"); err == nil {
		t.Error("Expected error for maybe")
	}
}
