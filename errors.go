package scribdlink

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for library operations.
var (
	ErrInvalidReference = errors.New("invalid or unrecognized Scribd URL format")
	ErrMissingAPIKey    = errors.New("missing API key")
	ErrLinkNotDetected  = errors.New("download link response not detected")
	ErrNavigation       = errors.New("navigation failed")
	ErrMalformedPayload = errors.New("invalid response format from upstream service")
	ErrBrowserConnect   = errors.New("failed to connect to browser")
	ErrPageCreate       = errors.New("failed to create browser page")
	ErrUnknownBackend   = errors.New("unknown backend")
)

// Kind classifies a failed resolution.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindServerMisconfigured
	KindUpstreamRejected
	KindUpstreamUnavailable
	KindUpstreamMalformed
)

var kindNames = map[Kind]string{
	KindInternal:            "internal",
	KindInvalidInput:        "invalid_input",
	KindServerMisconfigured: "server_misconfigured",
	KindUpstreamRejected:    "upstream_rejected",
	KindUpstreamUnavailable: "upstream_unavailable",
	KindUpstreamMalformed:   "upstream_malformed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the caller-facing failure of a resolution.
// Message is safe to show to clients; Err keeps the underlying cause.
type Error struct {
	Kind           Kind
	UpstreamStatus int // status returned by the remote collaborator, if any
	Message        string
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to the status returned to the caller.
// Rejections (400, 401, 403, 429) keep the upstream status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindServerMisconfigured:
		return http.StatusInternalServerError
	case KindUpstreamRejected:
		if isRejectionStatus(e.UpstreamStatus) {
			return e.UpstreamStatus
		}
		return http.StatusBadGateway
	case KindUpstreamUnavailable, KindUpstreamMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UpstreamError is returned by backends when the remote collaborator answers
// with a non-success HTTP status.
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("Upstream API Error (%d)", e.Status)
	}
	return fmt.Sprintf("Upstream API Error (%d): %s", e.Status, e.Detail)
}

// rejectionStatuses are forwarded to the caller unchanged.
var rejectionStatuses = map[int]bool{
	http.StatusBadRequest:      true,
	http.StatusUnauthorized:    true,
	http.StatusForbidden:       true,
	http.StatusTooManyRequests: true,
}

func isRejectionStatus(status int) bool {
	return rejectionStatuses[status]
}

// KindOf reports the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return KindInternal
}
