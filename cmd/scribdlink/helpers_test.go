package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alnah/go-scribdlink/internal/config"
)

// managedEnvVars lists every variable the CLI reads.
var managedEnvVars = []string{
	"BROWSERLESS_API_KEY",
	"BROWSERLESS_DOMAIN",
	"BLOCK_SCRIPTS",
	"SCRIBDLINK_CONFIG",
	"SCRIBDLINK_BACKEND",
	"SCRIBDLINK_ADDR",
	"SCRIBDLINK_LOG_LEVEL",
	"SCRIBDLINK_WORKERS",
	"SCRIBDLINK_TIMEOUT",
	"SCRIBDLINK_CONTAINER",
}

// clearEnv blanks every variable the CLI reads. Empty means unset to the CLI.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range managedEnvVars {
		t.Setenv(name, "")
	}
}

// testEnv bundles an Environment with its captured output.
type testEnv struct {
	*Environment
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestEnv(stdin string) *testEnv {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return &testEnv{
		Environment: &Environment{
			Now:    func() time.Time { return time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC) },
			Stdin:  strings.NewReader(stdin),
			Stdout: stdout,
			Stderr: stderr,
			Config: config.DefaultConfig(),
		},
		stdout: stdout,
		stderr: stderr,
	}
}

// providerStub answers the /function endpoint with a fixed status and body
// and counts the calls it receives.
type providerStub struct {
	*httptest.Server
	calls atomic.Int32
}

func newProviderStub(t *testing.T, status int, body string) *providerStub {
	t.Helper()
	stub := &providerStub{}
	stub.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(stub.Close)
	return stub
}
