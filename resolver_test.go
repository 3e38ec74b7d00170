package scribdlink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// mockBackend is a Backend returning canned results.
type mockBackend struct {
	link   string
	err    error
	panics bool

	called bool
	cfg    InterceptionConfig
	closed bool
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Intercept(ctx context.Context, cfg InterceptionConfig) (string, error) {
	m.called = true
	m.cfg = cfg
	if m.panics {
		panic("driver exploded")
	}
	return m.link, m.err
}

func (m *mockBackend) Close() error {
	m.closed = true
	return nil
}

const sampleURL = "https://www.scribd.com/document/456/My-Great-Report"

func TestResolve_EndToEnd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		want       string
		wantKind   Kind
		wantHTTP   int
		wantSubstr string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"data":"https://example.com/file.pdf"}`,
			want:   "https://example.com/file.pdf",
		},
		{
			name:       "rejected token",
			status:     http.StatusForbidden,
			body:       `{"message":"bad token"}`,
			wantKind:   KindUpstreamRejected,
			wantHTTP:   http.StatusForbidden,
			wantSubstr: "bad token",
		},
		{
			name:       "rate limited",
			status:     http.StatusTooManyRequests,
			body:       "slow down",
			wantKind:   KindUpstreamRejected,
			wantHTTP:   http.StatusTooManyRequests,
			wantSubstr: "Upstream API Error (429): slow down",
		},
		{
			name:       "upstream failure",
			status:     http.StatusInternalServerError,
			body:       `{"message":"Download link response not detected on ilide.info."}`,
			wantKind:   KindUpstreamUnavailable,
			wantHTTP:   http.StatusBadGateway,
			wantSubstr: "not detected",
		},
		{
			name:       "numeric data",
			status:     http.StatusOK,
			body:       `{"data":12345}`,
			wantKind:   KindUpstreamMalformed,
			wantHTTP:   http.StatusBadGateway,
			wantSubstr: "invalid response format",
		},
		{
			name:       "data is not a URL",
			status:     http.StatusOK,
			body:       `{"data":"not a link"}`,
			wantKind:   KindUpstreamMalformed,
			wantHTTP:   http.StatusBadGateway,
			wantSubstr: "invalid response format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv, _ := newFunctionStub(t, tt.status, tt.body)
			r, err := NewResolver(
				WithAPIKey("k"),
				WithProviderHost(srv.URL),
				WithHTTPClient(srv.Client()),
			)
			if err != nil {
				t.Fatalf("NewResolver() error = %v", err)
			}
			defer r.Close()

			res, err := r.Resolve(context.Background(), sampleURL)

			if tt.want != "" {
				if err != nil {
					t.Fatalf("Resolve() error = %v", err)
				}
				if res.DownloadLink != tt.want {
					t.Errorf("DownloadLink = %q, want %q", res.DownloadLink, tt.want)
				}
				if res.Identity.DocumentID != "456" {
					t.Errorf("Identity.DocumentID = %q, want 456", res.Identity.DocumentID)
				}
				if res.Backend != BackendFunction {
					t.Errorf("Backend = %q, want %q", res.Backend, BackendFunction)
				}
				return
			}

			var rerr *Error
			if !errors.As(err, &rerr) {
				t.Fatalf("Resolve() error = %v, want *Error", err)
			}
			if rerr.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", rerr.Kind, tt.wantKind)
			}
			if rerr.HTTPStatus() != tt.wantHTTP {
				t.Errorf("HTTPStatus() = %d, want %d", rerr.HTTPStatus(), tt.wantHTTP)
			}
			if !strings.Contains(rerr.Error(), tt.wantSubstr) {
				t.Errorf("Error() = %q, want it to contain %q", rerr.Error(), tt.wantSubstr)
			}
		})
	}
}

func TestResolve_MissingAPIKey(t *testing.T) {
	t.Parallel()

	mock := &mockBackend{link: "https://example.com/file.pdf"}
	r, err := NewResolver(withBackendImpl(mock))
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	// Checked before the input: even an invalid URL yields the config error
	_, err = r.Resolve(context.Background(), "")

	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("Resolve() error = %v, want *Error", err)
	}
	if rerr.Kind != KindServerMisconfigured {
		t.Errorf("Kind = %v, want %v", rerr.Kind, KindServerMisconfigured)
	}
	if rerr.HTTPStatus() != http.StatusInternalServerError {
		t.Errorf("HTTPStatus() = %d, want 500", rerr.HTTPStatus())
	}
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Error("error should wrap ErrMissingAPIKey")
	}
	if mock.called {
		t.Error("backend must not be called without an API key")
	}
}

func TestResolve_LocalBackendNeedsNoKey(t *testing.T) {
	t.Parallel()

	mock := &mockBackend{link: "https://example.com/file.pdf"}
	r, err := NewResolver(WithBackend(BackendLocal), withBackendImpl(mock))
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	if _, err := r.Resolve(context.Background(), sampleURL); err != nil {
		t.Errorf("Resolve() error = %v", err)
	}
}

func TestResolve_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: msgInvalidInput},
		{name: "blank", input: "  ", want: msgInvalidInput},
		{name: "unrecognized", input: "https://example.com/doc/1", want: msgInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := &mockBackend{}
			r, err := NewResolver(WithAPIKey("k"), withBackendImpl(mock))
			if err != nil {
				t.Fatalf("NewResolver() error = %v", err)
			}

			_, err = r.Resolve(context.Background(), tt.input)

			var rerr *Error
			if !errors.As(err, &rerr) {
				t.Fatalf("Resolve() error = %v, want *Error", err)
			}
			if rerr.Kind != KindInvalidInput || rerr.HTTPStatus() != http.StatusBadRequest {
				t.Errorf("got %v/%d, want invalid_input/400", rerr.Kind, rerr.HTTPStatus())
			}
			if rerr.Message != tt.want {
				t.Errorf("Message = %q, want %q", rerr.Message, tt.want)
			}
			if !errors.Is(err, ErrInvalidReference) {
				t.Error("error should wrap ErrInvalidReference")
			}
			if mock.called {
				t.Error("backend must not be called for invalid input")
			}
		})
	}
}

func TestResolve_BackendErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantKind Kind
		wantHTTP int
	}{
		{
			name:     "link not detected",
			err:      ErrLinkNotDetected,
			wantKind: KindUpstreamUnavailable,
			wantHTTP: http.StatusBadGateway,
		},
		{
			name:     "navigation",
			err:      fmt.Errorf("%w: net::ERR_ABORTED", ErrNavigation),
			wantKind: KindUpstreamUnavailable,
			wantHTTP: http.StatusBadGateway,
		},
		{
			name:     "browser connect",
			err:      fmt.Errorf("%w: dial tcp: refused", ErrBrowserConnect),
			wantKind: KindUpstreamUnavailable,
			wantHTTP: http.StatusBadGateway,
		},
		{
			name:     "deadline",
			err:      fmt.Errorf("calling provider: %w", context.DeadlineExceeded),
			wantKind: KindUpstreamUnavailable,
			wantHTTP: http.StatusBadGateway,
		},
		{
			name:     "rejected bad request",
			err:      &UpstreamError{Status: http.StatusBadRequest, Detail: "bad script"},
			wantKind: KindUpstreamRejected,
			wantHTTP: http.StatusBadRequest,
		},
		{
			name:     "unauthorized",
			err:      &UpstreamError{Status: http.StatusUnauthorized, Detail: "no"},
			wantKind: KindUpstreamRejected,
			wantHTTP: http.StatusUnauthorized,
		},
		{
			name:     "service unavailable",
			err:      &UpstreamError{Status: http.StatusServiceUnavailable, Detail: "busy"},
			wantKind: KindUpstreamUnavailable,
			wantHTTP: http.StatusBadGateway,
		},
		{
			name:     "unexpected",
			err:      errors.New("something odd"),
			wantKind: KindInternal,
			wantHTTP: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, err := NewResolver(WithAPIKey("k"), withBackendImpl(&mockBackend{err: tt.err}))
			if err != nil {
				t.Fatalf("NewResolver() error = %v", err)
			}

			_, err = r.Resolve(context.Background(), sampleURL)

			var rerr *Error
			if !errors.As(err, &rerr) {
				t.Fatalf("Resolve() error = %v, want *Error", err)
			}
			if rerr.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", rerr.Kind, tt.wantKind)
			}
			if rerr.HTTPStatus() != tt.wantHTTP {
				t.Errorf("HTTPStatus() = %d, want %d", rerr.HTTPStatus(), tt.wantHTTP)
			}
			if !errors.Is(err, tt.err) {
				t.Error("cause should be preserved")
			}
		})
	}
}

func TestResolve_RecoversPanic(t *testing.T) {
	t.Parallel()

	r, err := NewResolver(WithAPIKey("k"), withBackendImpl(&mockBackend{panics: true}))
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	res, err := r.Resolve(context.Background(), sampleURL)
	if res != nil {
		t.Error("expected nil result")
	}
	if KindOf(err) != KindInternal {
		t.Errorf("KindOf() = %v, want %v", KindOf(err), KindInternal)
	}
}

func TestResolve_PassesProfile(t *testing.T) {
	t.Parallel()

	mock := &mockBackend{link: "https://example.com/file.pdf"}
	r, err := NewResolver(
		WithAPIKey("k"),
		WithBlockScripts(true),
		WithGenerator(Generator{BaseURL: "https://gen.test/v2"}),
		withBackendImpl(mock),
	)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	res, err := r.Resolve(context.Background(), sampleURL)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if !mock.cfg.BlockScripts || !mock.cfg.BlockResources {
		t.Errorf("profile blocking = scripts:%v resources:%v, want both true", mock.cfg.BlockScripts, mock.cfg.BlockResources)
	}
	if !strings.HasPrefix(mock.cfg.TargetURL, "https://gen.test/v2?fileurl=") {
		t.Errorf("TargetURL = %q, generator override not applied", mock.cfg.TargetURL)
	}
	if res.TargetURL != mock.cfg.TargetURL {
		t.Errorf("Result.TargetURL = %q, want %q", res.TargetURL, mock.cfg.TargetURL)
	}
}

func TestResolve_UsesContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	ctx := logger.WithContext(context.Background())

	r, err := NewResolver(WithAPIKey("k"), withBackendImpl(&mockBackend{link: "https://example.com/f.pdf"}))
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	if _, err := r.Resolve(ctx, "https://www.scribd.com/presentation/789"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"document_id":"789"`, `"fallback":true`, "Resolved download link"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestResolver_Plan(t *testing.T) {
	t.Parallel()

	mock := &mockBackend{}
	r, err := NewResolver(withBackendImpl(mock))
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	res, err := r.Plan(sampleURL)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if res.TargetURL != Generate(res.Identity) {
		t.Errorf("TargetURL = %q, want generated link", res.TargetURL)
	}
	if res.DownloadLink != "" {
		t.Error("Plan() must not resolve a download link")
	}
	if mock.called {
		t.Error("Plan() must not call the backend")
	}
}

func TestResolver_Close(t *testing.T) {
	t.Parallel()

	mock := &mockBackend{}
	r, err := NewResolver(withBackendImpl(mock))
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !mock.closed {
		t.Error("Close() should close the backend")
	}
}

func TestNewResolver_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := NewResolver(WithBackend("smoke-signals"))
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("NewResolver() error = %v, want ErrUnknownBackend", err)
	}
}

func TestWithTimeout_PanicsOnNonPositive(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("WithTimeout(0) should panic")
		}
	}()
	WithTimeout(0)
}
