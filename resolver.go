package scribdlink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Caller-facing messages.
const (
	msgMissingAPIKey   = "Server configuration error: Missing API Key."
	msgInvalidInput    = "Missing or invalid scribdUrl in request body."
	msgInvalidFormat   = "Invalid or unrecognized Scribd URL format."
	msgBadGateway      = "Bad Gateway: Received invalid response format from upstream service."
	msgUpstreamTimeout = "Upstream request timed out."
	msgInternal        = "An internal server error occurred."
)

// resolveTimeoutMargin is added to the navigation timeout when no explicit
// resolution timeout is set.
const resolveTimeoutMargin = 15 * time.Second

// Result is a successful resolution.
type Result struct {
	DownloadLink string
	Identity     Identity
	TargetURL    string
	Backend      string
	Duration     time.Duration
}

// Resolver turns Scribd share URLs into direct download links.
// Create with NewResolver, call Resolve, and Close when done.
// A Resolver is safe for concurrent use.
type Resolver struct {
	cfg     resolverConfig
	backend Backend
}

// NewResolver creates a Resolver. Options default to the function backend
// on the default provider host. A missing API key is not an error here:
// every resolution then fails with KindServerMisconfigured.
func NewResolver(opts ...Option) (*Resolver, error) {
	cfg := defaultResolverConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	backend := cfg.backend
	if backend == nil {
		var err error
		backend, err = newBackend(cfg.provider, &cfg)
		if err != nil {
			return nil, err
		}
	}

	return &Resolver{cfg: cfg, backend: backend}, nil
}

// Backend returns the name of the backend in use.
func (r *Resolver) Backend() string {
	return r.backend.Name()
}

// Close releases backend resources (browser connections).
func (r *Resolver) Close() error {
	return r.backend.Close()
}

// Plan extracts the identity and builds the target URL without contacting
// the remote collaborator. The returned Result has no DownloadLink.
func (r *Resolver) Plan(rawURL string) (*Result, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, &Error{Kind: KindInvalidInput, Message: msgInvalidInput, Err: ErrInvalidReference}
	}
	id, err := ExtractIdentity(rawURL)
	if err != nil {
		return nil, &Error{Kind: KindInvalidInput, Message: msgInvalidFormat, Err: err}
	}
	return &Result{
		Identity:  id,
		TargetURL: r.cfg.generator.Generate(id),
		Backend:   r.backend.Name(),
	}, nil
}

// Resolve runs the full pipeline for rawURL. Failures are always *Error.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (result *Result, err error) {
	log := loggerFrom(ctx, &r.cfg.logger)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("Recovered panic during resolution")
			result = nil
			err = &Error{Kind: KindInternal, Message: msgInternal, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	if NeedsAPIKey(r.cfg.provider.Backend) && r.cfg.provider.APIKey == "" {
		log.Error().Str("backend", r.backend.Name()).Msg("API key is not configured")
		return nil, &Error{Kind: KindServerMisconfigured, Message: msgMissingAPIKey, Err: ErrMissingAPIKey}
	}

	plan, err := r.Plan(rawURL)
	if err != nil {
		log.Debug().Err(err).Str("url", rawURL).Msg("Rejected source URL")
		return nil, err
	}
	id := plan.Identity

	evt := log.Debug()
	if id.Fallback {
		evt = log.Warn()
	}
	evt.Str("document_id", id.DocumentID).
		Str("slug", id.TitleSlug).
		Bool("fallback", id.Fallback).
		Msg("Extracted document identity")
	log.Debug().Str("target_url", plan.TargetURL).Msg("Generated target URL")

	timeout := r.cfg.timeout
	if timeout <= 0 {
		timeout = r.cfg.profile.withDefaults().NavigationTimeout + resolveTimeoutMargin
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	link, err := r.backend.Intercept(log.WithContext(ctx), InterceptionConfig{
		TargetURL:           plan.TargetURL,
		InterceptionProfile: r.cfg.profile,
	})
	if err != nil {
		rerr := classifyBackendError(err)
		logFailure(log, rerr, time.Since(start))
		return nil, rerr
	}

	if !isAbsoluteHTTPURL(link) {
		rerr := &Error{
			Kind:    KindUpstreamMalformed,
			Message: msgBadGateway,
			Err:     fmt.Errorf("%w: data is not an absolute URL", ErrMalformedPayload),
		}
		logFailure(log, rerr, time.Since(start))
		return nil, rerr
	}

	plan.DownloadLink = link
	plan.Duration = time.Since(start)
	log.Info().
		Str("document_id", id.DocumentID).
		Str("backend", plan.Backend).
		Dur("duration", plan.Duration).
		Msg("Resolved download link")
	return plan, nil
}

// classifyBackendError maps a backend failure onto the error taxonomy.
func classifyBackendError(err error) *Error {
	var uerr *UpstreamError
	switch {
	case errors.As(err, &uerr):
		kind := KindUpstreamUnavailable
		if isRejectionStatus(uerr.Status) {
			kind = KindUpstreamRejected
		}
		return &Error{Kind: kind, UpstreamStatus: uerr.Status, Message: uerr.Error(), Err: err}
	case errors.Is(err, ErrMalformedPayload):
		return &Error{Kind: KindUpstreamMalformed, Message: msgBadGateway, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindUpstreamUnavailable, Message: msgUpstreamTimeout, Err: err}
	case errors.Is(err, ErrLinkNotDetected),
		errors.Is(err, ErrNavigation),
		errors.Is(err, ErrBrowserConnect),
		errors.Is(err, ErrPageCreate):
		return &Error{Kind: KindUpstreamUnavailable, Message: err.Error(), Err: err}
	default:
		return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
	}
}

func logFailure(log *zerolog.Logger, rerr *Error, elapsed time.Duration) {
	log.Warn().
		Err(rerr.Err).
		Stringer("kind", rerr.Kind).
		Int("upstream_status", rerr.UpstreamStatus).
		Dur("duration", elapsed).
		Msg("Resolution failed")
}

func isAbsoluteHTTPURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
