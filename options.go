package scribdlink

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Resolver.
type Option func(*resolverConfig)

// resolverConfig holds internal configuration for Resolver.
type resolverConfig struct {
	provider   ProviderConfig
	profile    InterceptionProfile
	generator  Generator
	timeout    time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
	browserBin string
	backend    Backend // injected by tests
}

func defaultResolverConfig() resolverConfig {
	return resolverConfig{
		provider: ProviderConfig{
			Host:    DefaultProviderHost,
			Backend: BackendFunction,
		},
		profile:   DefaultInterceptionProfile(),
		generator: Generator{BaseURL: DefaultGeneratorBaseURL, FileHost: DefaultFileHost},
		logger:    zerolog.Nop(),
	}
}

// WithAPIKey sets the credential for the remote browser provider.
func WithAPIKey(key string) Option {
	return func(c *resolverConfig) {
		c.provider.APIKey = key
	}
}

// WithProviderHost sets the provider host (e.g. production-lon.browserless.io)
// or a full base URL. Empty keeps the default host.
func WithProviderHost(host string) Option {
	return func(c *resolverConfig) {
		if host != "" {
			c.provider.Host = host
		}
	}
}

// WithBackend selects how interception runs: BackendFunction, BackendCDP
// or BackendLocal. Empty keeps the default.
func WithBackend(name string) Option {
	return func(c *resolverConfig) {
		if name != "" {
			c.provider.Backend = name
		}
	}
}

// WithBlockScripts aborts script requests during interception.
func WithBlockScripts(block bool) Option {
	return func(c *resolverConfig) {
		c.profile.BlockScripts = block
	}
}

// WithProfile replaces the interception profile. Zero fields take defaults.
func WithProfile(p InterceptionProfile) Option {
	return func(c *resolverConfig) {
		c.profile = p.withDefaults()
	}
}

// WithGenerator overrides the redirection service endpoints.
// Empty fields keep the defaults.
func WithGenerator(g Generator) Option {
	return func(c *resolverConfig) {
		if g.BaseURL != "" {
			c.generator.BaseURL = g.BaseURL
		}
		if g.FileHost != "" {
			c.generator.FileHost = g.FileHost
		}
	}
}

// WithTimeout bounds a whole resolution. When unset, the bound is derived
// from the navigation timeout.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("scribdlink: WithTimeout duration must be positive")
	}
	return func(c *resolverConfig) {
		c.timeout = d
	}
}

// WithHTTPClient sets the client used by the function backend.
func WithHTTPClient(client *http.Client) Option {
	return func(c *resolverConfig) {
		c.httpClient = client
	}
}

// WithLogger sets the fallback logger. A logger attached to the request
// context with zerolog's WithContext takes precedence.
func WithLogger(log zerolog.Logger) Option {
	return func(c *resolverConfig) {
		c.logger = log
	}
}

// WithBrowserBin points the local backend at a Chrome binary.
func WithBrowserBin(path string) Option {
	return func(c *resolverConfig) {
		c.browserBin = path
	}
}

// withBackendImpl injects a Backend, bypassing construction from provider
// settings.
func withBackendImpl(b Backend) Option {
	return func(c *resolverConfig) {
		c.backend = b
	}
}
