package scribdlink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/alnah/go-scribdlink/internal/script"
)

// Remote timeouts around the script's own navigation ceiling.
const (
	remoteTimeoutMargin = 5 * time.Second // remote session outlives navigation
	callerTimeoutMargin = 5 * time.Second // HTTP call outlives remote session
	maxResponseBytes    = 1 << 20
)

// functionBackend submits the embedded interception script to the
// Browserless /function endpoint.
type functionBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newFunctionBackend(cfg ProviderConfig, client *http.Client) *functionBackend {
	if client == nil {
		client = &http.Client{}
	}
	return &functionBackend{
		baseURL: providerBaseURL(cfg.Host, "https"),
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

func (b *functionBackend) Name() string {
	return BackendFunction
}

// Close is a no-op: each call is a self-contained HTTP request.
func (b *functionBackend) Close() error {
	return nil
}

// remoteTimeout is the session ceiling requested from the provider.
func (b *functionBackend) remoteTimeout(cfg InterceptionConfig) time.Duration {
	return cfg.NavigationTimeout + remoteTimeoutMargin
}

// endpoint builds https://{host}/function?token={key}&timeout={ms}.
func (b *functionBackend) endpoint(timeout time.Duration) string {
	q := url.Values{}
	q.Set("token", b.apiKey)
	q.Set("timeout", fmt.Sprintf("%d", timeout.Milliseconds()))
	return b.baseURL + "/function?" + q.Encode()
}

// Intercept posts the script and its context and returns the reported link.
// Non-success statuses come back as *UpstreamError; a success status with a
// payload lacking a string data field yields ErrMalformedPayload.
func (b *functionBackend) Intercept(ctx context.Context, cfg InterceptionConfig) (string, error) {
	cfg.InterceptionProfile = cfg.withDefaults()

	req, err := script.NewRequest(script.Params{
		TargetURL:         cfg.TargetURL,
		BlockScripts:      cfg.BlockScripts,
		BlockResources:    cfg.BlockResources,
		NetworkIdle:       cfg.WaitUntil == WaitNetworkIdle,
		NavigationTimeout: cfg.NavigationTimeout,
		SettleDelay:       cfg.settleDelay(),
	})
	if err != nil {
		return "", err
	}

	remote := b.remoteTimeout(cfg)
	callCtx, cancel := context.WithTimeout(ctx, remote+callerTimeoutMargin)
	defer cancel()

	data, status, err := b.postJSON(callCtx, b.endpoint(remote), req)
	if err != nil {
		return "", err
	}

	if status < 200 || status >= 300 {
		return "", &UpstreamError{Status: status, Detail: upstreamDetail(data)}
	}

	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("%w: body is not JSON", ErrMalformedPayload)
	}
	field := gjson.GetBytes(data, "data")
	if field.Type != gjson.String {
		return "", fmt.Errorf("%w: data field is %s", ErrMalformedPayload, field.Type)
	}
	return field.Str, nil
}

// postJSON sends payload and returns the body and status regardless of status.
func (b *functionBackend) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := b.client.Do(req)
	if err != nil {
		// *url.Error repeats the URL, token included
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, 0, fmt.Errorf("calling %s: %w", redactToken(endpoint), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// upstreamDetail prefers the JSON message field and falls back to raw text.
func upstreamDetail(body []byte) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "message"); msg.Exists() && msg.String() != "" {
			return msg.String()
		}
	}
	return strings.TrimSpace(string(body))
}

// redactToken hides the API key in URLs that end up in errors and logs.
func redactToken(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
