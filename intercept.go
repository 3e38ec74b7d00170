package scribdlink

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// WaitStrategy selects the page-ready signal awaited after navigation.
type WaitStrategy string

const (
	WaitDOMContentLoaded WaitStrategy = "domcontentloaded"
	WaitNetworkIdle      WaitStrategy = "networkidle"
)

// Valid reports whether w is a known strategy.
func (w WaitStrategy) Valid() bool {
	return w == WaitDOMContentLoaded || w == WaitNetworkIdle
}

// Interception defaults.
const (
	DefaultNavigationTimeout  = 55 * time.Second
	DefaultSettleDelay        = 1500 * time.Millisecond
	DefaultSettleDelayBlocked = 500 * time.Millisecond
)

// Capture pattern: the viewer page carries the direct link in its file= parameter.
const (
	viewerPathMarker = "viewer/web/viewer.html"
	fileParamMarker  = "file="
	fileParamName    = "file"
)

// Resource types aborted whenever non-essential resources are blocked.
var nonEssentialResources = map[string]bool{
	"image":      true,
	"stylesheet": true,
	"font":       true,
	"media":      true,
}

// InterceptionProfile holds the knobs that differed between resolver
// variants: wait strategy, timeouts and resource blocking.
type InterceptionProfile struct {
	WaitUntil          WaitStrategy
	NavigationTimeout  time.Duration
	SettleDelay        time.Duration // used when scripts run
	SettleDelayBlocked time.Duration // used when scripts are blocked
	BlockResources     bool
	BlockScripts       bool
}

// DefaultInterceptionProfile returns the profile used when nothing is configured.
func DefaultInterceptionProfile() InterceptionProfile {
	return InterceptionProfile{
		WaitUntil:          WaitDOMContentLoaded,
		NavigationTimeout:  DefaultNavigationTimeout,
		SettleDelay:        DefaultSettleDelay,
		SettleDelayBlocked: DefaultSettleDelayBlocked,
		BlockResources:     true,
	}
}

// withDefaults fills zero fields from the default profile.
func (p InterceptionProfile) withDefaults() InterceptionProfile {
	d := DefaultInterceptionProfile()
	if !p.WaitUntil.Valid() {
		p.WaitUntil = d.WaitUntil
	}
	if p.NavigationTimeout <= 0 {
		p.NavigationTimeout = d.NavigationTimeout
	}
	if p.SettleDelay <= 0 {
		p.SettleDelay = d.SettleDelay
	}
	if p.SettleDelayBlocked <= 0 {
		p.SettleDelayBlocked = d.SettleDelayBlocked
	}
	return p
}

// InterceptionConfig is the read-only input of one interception run.
type InterceptionConfig struct {
	TargetURL string
	InterceptionProfile
}

// settleDelay is shorter when scripts are blocked: fewer async redirects to wait for.
func (c InterceptionConfig) settleDelay() time.Duration {
	if c.BlockScripts {
		return c.SettleDelayBlocked
	}
	return c.SettleDelay
}

// blocks reports whether a request of resourceType must be aborted.
func (c InterceptionConfig) blocks(resourceType string) bool {
	rt := strings.ToLower(resourceType)
	if c.BlockScripts && rt == "script" {
		return true
	}
	return c.BlockResources && nonEssentialResources[rt]
}

// MatchCapture extracts the direct link from a viewer response URL.
// The file parameter is decoded once as a query value and once more here;
// a further decode pass is attempted and dropped if it fails.
func MatchCapture(responseURL string) (string, bool) {
	if !strings.Contains(responseURL, viewerPathMarker) || !strings.Contains(responseURL, fileParamMarker) {
		return "", false
	}
	u, err := url.Parse(responseURL)
	if err != nil {
		return "", false
	}
	fileParam := queryValue(u.RawQuery, fileParamName)
	if fileParam == "" {
		return "", false
	}
	link, err := url.PathUnescape(fileParam)
	if err != nil {
		return "", false
	}
	if again, err := url.PathUnescape(link); err == nil {
		link = again
	}
	return link, true
}

// queryValue returns the first value of name in rawQuery, splitting on '&'
// only. url.ParseQuery drops pairs holding a raw ';', which browsers keep.
// A value that fails to unescape is returned as is.
func queryValue(rawQuery, name string) string {
	for _, pair := range strings.Split(rawQuery, "&") {
		key, value, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if key != name {
			continue
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		return value
	}
	return ""
}

// linkSlot is a single-assignment holder for the captured link.
// The first Offer wins; later offers are ignored.
type linkSlot struct {
	mu       sync.Mutex
	link     string
	set      bool
	captured chan struct{}
}

func newLinkSlot() *linkSlot {
	return &linkSlot{captured: make(chan struct{})}
}

// Offer records link if the slot is empty and reports whether it was stored.
func (s *linkSlot) Offer(link string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		return false
	}
	s.link = link
	s.set = true
	close(s.captured)
	return true
}

// Load returns the recorded link, if any.
func (s *linkSlot) Load() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link, s.set
}

// Captured is closed once a link has been recorded.
func (s *linkSlot) Captured() <-chan struct{} {
	return s.captured
}

// pageDriver abstracts a browser page so the interception flow can run
// against rod or a fake in tests.
type pageDriver interface {
	// FilterRequests installs a request policy; block returns true to abort.
	FilterRequests(block func(resourceType string) bool) (stop func(), err error)
	// ObserveResponses calls fn with the URL of every response, possibly concurrently.
	ObserveResponses(fn func(responseURL string)) (stop func(), err error)
	// Navigate loads url and returns once the wait signal fired or ctx ends.
	Navigate(ctx context.Context, url string, wait WaitStrategy) error
}

// interceptHooks receives diagnostic callbacks; nil fields are skipped.
type interceptHooks struct {
	onBlocked  func(resourceType string)
	onCapture  func(link string)
	onIgnored  func(link string)
	onNavError func(err error)
}

// runInterception drives one page through filtering, observation,
// navigation and settling, and returns the first captured link.
func runInterception(ctx context.Context, drv pageDriver, cfg InterceptionConfig, hooks interceptHooks) (string, error) {
	cfg.InterceptionProfile = cfg.withDefaults()
	slot := newLinkSlot()

	stopFilter, err := drv.FilterRequests(func(resourceType string) bool {
		if cfg.blocks(resourceType) {
			if hooks.onBlocked != nil {
				hooks.onBlocked(resourceType)
			}
			return true
		}
		return false
	})
	if err != nil {
		return "", fmt.Errorf("%w: installing request filter: %v", ErrNavigation, err)
	}
	defer stopFilter()

	stopObserve, err := drv.ObserveResponses(func(responseURL string) {
		link, ok := MatchCapture(responseURL)
		if !ok {
			return
		}
		if slot.Offer(link) {
			if hooks.onCapture != nil {
				hooks.onCapture(link)
			}
		} else if hooks.onIgnored != nil {
			hooks.onIgnored(link)
		}
	})
	if err != nil {
		return "", fmt.Errorf("%w: installing response observer: %v", ErrNavigation, err)
	}
	defer stopObserve()

	navCtx, cancel := context.WithTimeout(ctx, cfg.NavigationTimeout)
	navErr := drv.Navigate(navCtx, cfg.TargetURL, cfg.WaitUntil)
	cancel()

	if navErr != nil {
		if hooks.onNavError != nil {
			hooks.onNavError(navErr)
		}
	} else {
		settle(ctx, slot, cfg.settleDelay())
	}

	if link, ok := slot.Load(); ok {
		return link, nil
	}
	if navErr != nil {
		if errors.Is(navErr, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: timeout after %s: %v", ErrNavigation, cfg.NavigationTimeout, navErr)
		}
		return "", fmt.Errorf("%w: %v", ErrNavigation, navErr)
	}
	return "", ErrLinkNotDetected
}

// settle waits up to d for a capture, returning early when one arrives.
func settle(ctx context.Context, slot *linkSlot, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-slot.Captured():
	case <-timer.C:
	case <-ctx.Done():
	}
}
