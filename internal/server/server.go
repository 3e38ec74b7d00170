// Package server exposes the resolver over HTTP.
//
// Routes:
//
//	POST /api/getScribdLink   {"scribdUrl": "..."} -> {"downloadLink": "..."}
//	GET  /healthz             liveness check
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/tidwall/gjson"

	scribdlink "github.com/alnah/go-scribdlink"
)

// Route paths.
const (
	ResolvePath = "/api/getScribdLink"
	HealthPath  = "/healthz"
)

// MaxBodySize caps the inbound request body. A share URL is short.
const MaxBodySize = 64 * 1024

const msgInternal = "An internal server error occurred."

// Resolver is the part of the resolver pool the handler needs.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (*scribdlink.Result, error)
}

// Compile-time interface implementation checks.
var (
	_ Resolver = (*scribdlink.Resolver)(nil)
	_ Resolver = (*scribdlink.ResolverPool)(nil)
)

type handler struct {
	resolver Resolver
}

// NewHandler returns the HTTP API wrapped in request logging middleware.
// Each request gets a logger carrying its request id, which the resolver
// picks up from the request context.
func NewHandler(r Resolver, log zerolog.Logger) http.Handler {
	h := &handler{resolver: r}

	mux := http.NewServeMux()
	mux.HandleFunc(ResolvePath, h.handleResolve)
	mux.HandleFunc(HealthPath, handleHealth)

	var chain http.Handler = mux
	chain = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	})(chain)
	chain = hlog.RemoteAddrHandler("remote")(chain)
	chain = hlog.RequestIDHandler("req_id", "Request-Id")(chain)
	chain = hlog.NewHandler(log)(chain)
	return chain
}

// handleResolve answers POST /api/getScribdLink.
func (h *handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, fmt.Sprintf("Method %s Not Allowed", r.Method), http.StatusMethodNotAllowed)
		return
	}

	rawURL := readScribdURL(w, r)

	// An empty URL still goes through Resolve so a missing API key is
	// reported before the bad body.
	result, err := h.resolver.Resolve(r.Context(), rawURL)
	if err != nil {
		var rerr *scribdlink.Error
		if errors.As(err, &rerr) {
			writeError(w, rerr.Error(), rerr.HTTPStatus())
			return
		}
		hlog.FromRequest(r).Error().Err(err).Msg("Unclassified resolver error")
		writeError(w, msgInternal, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"downloadLink": result.DownloadLink})
}

// readScribdURL returns the scribdUrl string field of the body, or "" when
// the body is unreadable, not JSON, or the field is missing or not a string.
func readScribdURL(w http.ResponseWriter, r *http.Request) string {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("Failed to read request body")
		return ""
	}
	if !gjson.ValidBytes(body) {
		return ""
	}
	field := gjson.GetBytes(body, "scribdUrl")
	if field.Type != gjson.String {
		return ""
	}
	return field.Str
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, fmt.Sprintf("Method %s Not Allowed", r.Method), http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Server is an http.Server bound to the API handler.
type Server struct {
	srv *http.Server
	log zerolog.Logger
}

// Config holds listener settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// shutdownTimeout bounds graceful shutdown of in-flight resolutions.
const shutdownTimeout = 30 * time.Second

// New creates a Server for r.
func New(cfg Config, r Resolver, log zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewHandler(r, log),
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		log: log,
	}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("Listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
