// Package script holds the interception program submitted to a remote
// Puppeteer runtime, together with the typed request that carries it.
//
// The program is kept as a real JavaScript file so it can be linted and
// reviewed on its own; Go only sees it as an opaque payload field.
package script

import (
	_ "embed"
	"errors"
	"time"
)

//go:embed intercept.js
var interceptSource string

// Wait values understood by Puppeteer's page.goto.
const (
	WaitDOMContentLoaded = "domcontentloaded"
	WaitNetworkIdle      = "networkidle2"
)

// ErrEmptyTarget is returned when a request has no target URL.
var ErrEmptyTarget = errors.New("script: empty target URL")

// Source returns the interception program.
func Source() string {
	return interceptSource
}

// Context is the read-only input handed to the program.
type Context struct {
	TargetURL         string `json:"targetUrl"`
	BlockScripts      bool   `json:"blockScripts"`
	BlockResources    bool   `json:"blockResources"`
	WaitUntil         string `json:"waitUntil"`
	NavigationTimeout int64  `json:"navigationTimeout"` // milliseconds
	SettleDelay       int64  `json:"settleDelay"`       // milliseconds
}

// Request is the JSON body of a /function call.
type Request struct {
	Code    string  `json:"code"`
	Context Context `json:"context"`
}

// Params describes one run in Go terms.
type Params struct {
	TargetURL         string
	BlockScripts      bool
	BlockResources    bool
	NetworkIdle       bool
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
}

// NewRequest builds the /function body for p.
func NewRequest(p Params) (Request, error) {
	if p.TargetURL == "" {
		return Request{}, ErrEmptyTarget
	}
	wait := WaitDOMContentLoaded
	if p.NetworkIdle {
		wait = WaitNetworkIdle
	}
	return Request{
		Code: interceptSource,
		Context: Context{
			TargetURL:         p.TargetURL,
			BlockScripts:      p.BlockScripts,
			BlockResources:    p.BlockResources,
			WaitUntil:         wait,
			NavigationTimeout: p.NavigationTimeout.Milliseconds(),
			SettleDelay:       p.SettleDelay.Milliseconds(),
		},
	}, nil
}
