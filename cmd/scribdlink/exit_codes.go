package main

import (
	"errors"

	scribdlink "github.com/alnah/go-scribdlink"
	"github.com/alnah/go-scribdlink/internal/config"
)

// Exit codes for the scribdlink CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess       = 0 // Every URL resolved
	ExitGeneral       = 1 // General/unexpected error
	ExitUsage         = 2 // Invalid flags, config, or source URL
	ExitUpstream      = 3 // Provider rejected, failed, or answered garbage
	ExitBrowser       = 4 // Browser/Chrome errors (cdp and local backends)
	ExitMisconfigured = 5 // Missing API key
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Browser errors (exit 4) are checked before the kind: the resolver
	// reports them as an unavailable upstream.
	if errors.Is(err, scribdlink.ErrBrowserConnect) ||
		errors.Is(err, scribdlink.ErrPageCreate) {
		return ExitBrowser
	}

	switch scribdlink.KindOf(err) {
	case scribdlink.KindInvalidInput:
		return ExitUsage
	case scribdlink.KindServerMisconfigured:
		return ExitMisconfigured
	case scribdlink.KindUpstreamRejected,
		scribdlink.KindUpstreamUnavailable,
		scribdlink.KindUpstreamMalformed:
		return ExitUpstream
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, scribdlink.ErrUnknownBackend) ||
		errors.Is(err, ErrNoURLs) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, ErrUnknownCommand) ||
		errors.Is(err, ErrUsage) {
		return ExitUsage
	}

	return ExitGeneral
}
