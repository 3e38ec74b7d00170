package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	scribdlink "github.com/alnah/go-scribdlink"
)

// fakeResolver records the URLs it receives and answers with a fixed outcome.
type fakeResolver struct {
	mu     sync.Mutex
	urls   []string
	result *scribdlink.Result
	err    error
}

func (f *fakeResolver) Resolve(_ context.Context, rawURL string) (*scribdlink.Result, error) {
	f.mu.Lock()
	f.urls = append(f.urls, rawURL)
	f.mu.Unlock()
	return f.result, f.err
}

func (f *fakeResolver) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

func decodeBody(t *testing.T, body io.Reader) map[string]string {
	t.Helper()
	var out map[string]string
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			t.Parallel()

			fake := &fakeResolver{}
			h := NewHandler(fake, zerolog.Nop())

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(method, ResolvePath, nil))

			if rec.Code != http.StatusMethodNotAllowed {
				t.Fatalf("status = %d, want 405", rec.Code)
			}
			if got := rec.Header().Get("Allow"); got != http.MethodPost {
				t.Errorf("Allow = %q, want POST", got)
			}
			body := decodeBody(t, rec.Body)
			if want := "Method " + method + " Not Allowed"; body["error"] != want {
				t.Errorf("error = %q, want %q", body["error"], want)
			}
			if len(fake.calls()) != 0 {
				t.Error("resolver should not be called")
			}
		})
	}
}

func TestHandler_Success(t *testing.T) {
	t.Parallel()

	fake := &fakeResolver{result: &scribdlink.Result{DownloadLink: "https://example.com/file.pdf"}}
	h := NewHandler(fake, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, ResolvePath,
		strings.NewReader(`{"scribdUrl":"https://www.scribd.com/document/456/My-Great-Report"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Header().Get("Request-Id") == "" {
		t.Error("Request-Id header not set")
	}
	body := decodeBody(t, rec.Body)
	if body["downloadLink"] != "https://example.com/file.pdf" {
		t.Errorf("downloadLink = %q", body["downloadLink"])
	}
	if calls := fake.calls(); len(calls) != 1 || calls[0] != "https://www.scribd.com/document/456/My-Great-Report" {
		t.Errorf("resolver calls = %v", calls)
	}
}

func TestHandler_BodyExtraction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "valid", body: `{"scribdUrl":"https://scribd.com/document/1"}`, want: "https://scribd.com/document/1"},
		{name: "empty body", body: ``, want: ""},
		{name: "not json", body: `scribdUrl=https://scribd.com/document/1`, want: ""},
		{name: "missing field", body: `{"url":"https://scribd.com/document/1"}`, want: ""},
		{name: "number field", body: `{"scribdUrl":12345}`, want: ""},
		{name: "null field", body: `{"scribdUrl":null}`, want: ""},
		{name: "array body", body: `["https://scribd.com/document/1"]`, want: ""},
		{name: "oversized body", body: `{"scribdUrl":"` + strings.Repeat("a", MaxBodySize) + `"}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := &fakeResolver{result: &scribdlink.Result{DownloadLink: "https://example.com/x.pdf"}}
			h := NewHandler(fake, zerolog.Nop())

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, ResolvePath, strings.NewReader(tt.body)))

			calls := fake.calls()
			if len(calls) != 1 {
				t.Fatalf("resolver called %d times, want 1", len(calls))
			}
			if calls[0] != tt.want {
				t.Errorf("resolver got %q, want %q", calls[0], tt.want)
			}
		})
	}
}

func TestHandler_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "invalid input",
			err:        &scribdlink.Error{Kind: scribdlink.KindInvalidInput, Message: "Missing or invalid scribdUrl in request body."},
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing or invalid scribdUrl in request body.",
		},
		{
			name:       "misconfigured",
			err:        &scribdlink.Error{Kind: scribdlink.KindServerMisconfigured, Message: "Server configuration error: Missing API Key."},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Server configuration error: Missing API Key.",
		},
		{
			name:       "upstream rejected keeps status",
			err:        &scribdlink.Error{Kind: scribdlink.KindUpstreamRejected, UpstreamStatus: 429, Message: "Upstream API Error (429): slow down"},
			wantStatus: http.StatusTooManyRequests,
			wantError:  "Upstream API Error (429): slow down",
		},
		{
			name:       "upstream malformed",
			err:        &scribdlink.Error{Kind: scribdlink.KindUpstreamMalformed, Message: "bad gateway"},
			wantStatus: http.StatusBadGateway,
			wantError:  "bad gateway",
		},
		{
			name:       "unclassified error hides details",
			err:        errors.New("boom: secret detail"),
			wantStatus: http.StatusInternalServerError,
			wantError:  msgInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHandler(&fakeResolver{err: tt.err}, zerolog.Nop())
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, ResolvePath, strings.NewReader(`{"scribdUrl":"x"}`)))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if body := decodeBody(t, rec.Body); body["error"] != tt.wantError {
				t.Errorf("error = %q, want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()

	h := NewHandler(&fakeResolver{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec.Body); body["status"] != "ok" {
		t.Errorf("status field = %q", body["status"])
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, HealthPath, nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}

func TestHandler_AccessLog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := zerolog.New(&buf)
	h := NewHandler(&fakeResolver{result: &scribdlink.Result{DownloadLink: "https://example.com/a.pdf"}}, log)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, ResolvePath, strings.NewReader(`{"scribdUrl":"x"}`)))

	out := buf.String()
	for _, want := range []string{`"req_id"`, `"status":200`, `"method":"POST"`, `"message":"Request"`} {
		if !strings.Contains(out, want) {
			t.Errorf("access log missing %s:\n%s", want, out)
		}
	}
}

// ---------------------------------------------------------------------------
// End-to-end through a real Resolver and a stubbed provider
// ---------------------------------------------------------------------------

func newProviderStub(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandler_EndToEnd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		apiKey       string
		stubStatus   int
		stubBody     string
		requestBody  string
		wantStatus   int
		wantLink     string
		wantContains string
	}{
		{
			name:        "success",
			apiKey:      "k",
			stubStatus:  http.StatusOK,
			stubBody:    `{"data":"https://example.com/file.pdf"}`,
			requestBody: `{"scribdUrl":"https://www.scribd.com/document/456/My-Great-Report"}`,
			wantStatus:  http.StatusOK,
			wantLink:    "https://example.com/file.pdf",
		},
		{
			name:         "provider rejects token",
			apiKey:       "k",
			stubStatus:   http.StatusForbidden,
			stubBody:     `{"message":"bad token"}`,
			requestBody:  `{"scribdUrl":"https://www.scribd.com/document/456/My-Great-Report"}`,
			wantStatus:   http.StatusForbidden,
			wantContains: "bad token",
		},
		{
			name:        "malformed payload",
			apiKey:      "k",
			stubStatus:  http.StatusOK,
			stubBody:    `{"data":12345}`,
			requestBody: `{"scribdUrl":"https://www.scribd.com/document/456/My-Great-Report"}`,
			wantStatus:  http.StatusBadGateway,
		},
		{
			name:         "provider failure becomes bad gateway",
			apiKey:       "k",
			stubStatus:   http.StatusInternalServerError,
			stubBody:     `crashed`,
			requestBody:  `{"scribdUrl":"https://www.scribd.com/document/456/My-Great-Report"}`,
			wantStatus:   http.StatusBadGateway,
			wantContains: "Upstream API Error (500)",
		},
		{
			name:         "unrecognized url",
			apiKey:       "k",
			stubStatus:   http.StatusOK,
			requestBody:  `{"scribdUrl":"https://example.com/nothing"}`,
			wantStatus:   http.StatusBadRequest,
			wantContains: "Scribd URL format",
		},
		{
			name:         "bad body with key",
			apiKey:       "k",
			stubStatus:   http.StatusOK,
			requestBody:  `{}`,
			wantStatus:   http.StatusBadRequest,
			wantContains: "Missing or invalid scribdUrl",
		},
		{
			name:         "missing key wins over bad body",
			stubStatus:   http.StatusOK,
			requestBody:  `{}`,
			wantStatus:   http.StatusInternalServerError,
			wantContains: "Missing API Key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stub := newProviderStub(t, tt.stubStatus, tt.stubBody)
			r, err := scribdlink.NewResolver(
				scribdlink.WithAPIKey(tt.apiKey),
				scribdlink.WithProviderHost(stub.URL),
				scribdlink.WithHTTPClient(stub.Client()),
				scribdlink.WithTimeout(5*time.Second),
			)
			if err != nil {
				t.Fatalf("NewResolver() error = %v", err)
			}
			t.Cleanup(func() { _ = r.Close() })

			api := httptest.NewServer(NewHandler(r, zerolog.Nop()))
			t.Cleanup(api.Close)

			resp, err := http.Post(api.URL+ResolvePath, "application/json", strings.NewReader(tt.requestBody))
			if err != nil {
				t.Fatalf("POST error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			body := decodeBody(t, resp.Body)
			if tt.wantLink != "" && body["downloadLink"] != tt.wantLink {
				t.Errorf("downloadLink = %q, want %q", body["downloadLink"], tt.wantLink)
			}
			if tt.wantLink == "" && body["error"] == "" {
				t.Error("error field is empty")
			}
			if tt.wantContains != "" && !strings.Contains(body["error"], tt.wantContains) {
				t.Errorf("error = %q, want it to contain %q", body["error"], tt.wantContains)
			}
		})
	}
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	s := New(Config{Addr: "127.0.0.1:0", ReadTimeout: time.Second, WriteTimeout: time.Second}, &fakeResolver{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestServer_RunListenError(t *testing.T) {
	t.Parallel()

	s := New(Config{Addr: "256.0.0.1:bad"}, &fakeResolver{}, zerolog.Nop())
	if err := s.Run(context.Background()); err == nil {
		t.Error("Run() error = nil, want listen error")
	}
}
