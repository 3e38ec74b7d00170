package scribdlink

import (
	"context"
	"fmt"
	"strings"
)

// Backend names.
const (
	BackendFunction = "function" // Browserless /function RPC with the embedded script
	BackendCDP      = "cdp"      // rod over a remote DevTools websocket
	BackendLocal    = "local"    // rod with a locally launched Chromium
)

// DefaultProviderHost is the Browserless region used when none is configured.
const DefaultProviderHost = "production-sfo.browserless.io"

// Backend runs one interception on the remote browser collaborator and
// returns the captured link as reported by it.
type Backend interface {
	Name() string
	Intercept(ctx context.Context, cfg InterceptionConfig) (string, error)
	Close() error
}

// Compile-time interface checks
var (
	_ Backend = (*functionBackend)(nil)
	_ Backend = (*rodBackend)(nil)
)

// ProviderConfig addresses and authenticates the remote collaborator.
type ProviderConfig struct {
	Host    string // host, or a full base URL with scheme
	APIKey  string
	Backend string
}

// providerBaseURL returns host as an absolute base URL without trailing slash.
// A bare host gets the given scheme.
func providerBaseURL(host, scheme string) string {
	if host == "" {
		host = DefaultProviderHost
	}
	if strings.Contains(host, "://") {
		return strings.TrimRight(host, "/")
	}
	return scheme + "://" + strings.TrimRight(host, "/")
}

// NeedsAPIKey reports whether the backend talks to an authenticated provider.
func NeedsAPIKey(backend string) bool {
	return backend != BackendLocal
}

// newBackend builds the backend named by cfg.Backend.
func newBackend(cfg ProviderConfig, rc *resolverConfig) (Backend, error) {
	switch cfg.Backend {
	case "", BackendFunction:
		return newFunctionBackend(cfg, rc.httpClient), nil
	case BackendCDP:
		return newRodBackend(rodOptions{
			controlURL: cdpControlURL(cfg),
			log:        rc.logger,
		}), nil
	case BackendLocal:
		return newRodBackend(rodOptions{
			launch:     true,
			browserBin: rc.browserBin,
			log:        rc.logger,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: function, cdp, local)", ErrUnknownBackend, cfg.Backend)
	}
}
