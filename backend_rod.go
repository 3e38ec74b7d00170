package scribdlink

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"

	"github.com/alnah/go-scribdlink/internal/process"
)

// rodOptions selects how the rod backend reaches a browser.
type rodOptions struct {
	controlURL string // DevTools websocket of a remote browser
	launch     bool   // launch a local Chromium instead
	browserBin string
	log        zerolog.Logger
}

// browserSession is one live browser connection.
type browserSession interface {
	// OpenPage opens a page bound to ctx; release closes it.
	OpenPage(ctx context.Context) (drv pageDriver, release func(), err error)
	Close() error
}

// rodBackend runs the interception flow in Go over the DevTools protocol.
// The browser session is created lazily and reused across calls; every
// call gets its own page. A session whose pages can no longer be opened
// (the remote provider ended it) is dropped and dialed again once.
type rodBackend struct {
	opts rodOptions
	dial func(ctx context.Context) (browserSession, error)

	mu      sync.Mutex
	session browserSession
}

func newRodBackend(opts rodOptions) *rodBackend {
	b := &rodBackend{opts: opts}
	b.dial = b.dialRod
	return b
}

// cdpControlURL builds wss://{host}?token={key} for a hosted browser.
func cdpControlURL(cfg ProviderConfig) string {
	base := providerBaseURL(cfg.Host, "wss")
	if cfg.APIKey == "" {
		return base
	}
	return base + "?token=" + url.QueryEscape(cfg.APIKey)
}

func (b *rodBackend) Name() string {
	if b.opts.launch {
		return BackendLocal
	}
	return BackendCDP
}

// ensureSession returns the cached session or dials a new one.
func (b *rodBackend) ensureSession(ctx context.Context) (browserSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		return b.session, nil
	}
	s, err := b.dial(ctx)
	if err != nil {
		return nil, err
	}
	b.session = s
	return s, nil
}

// dropSession closes s if it is still the cached session.
// Concurrent callers that hit the same dead session drop it only once.
func (b *rodBackend) dropSession(s browserSession) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != s {
		return
	}
	if err := s.Close(); err != nil {
		b.opts.log.Debug().Err(err).Msg("Failed to close stale browser session")
	}
	b.session = nil
}

// openPage opens a page, redialing once when the cached session is dead.
func (b *rodBackend) openPage(ctx context.Context) (pageDriver, func(), error) {
	s, err := b.ensureSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	drv, release, err := s.OpenPage(ctx)
	if err == nil {
		return drv, release, nil
	}

	loggerFrom(ctx, &b.opts.log).Warn().Err(err).Str("backend", b.Name()).Msg("Browser session lost, reconnecting")
	b.dropSession(s)

	s, err = b.ensureSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s.OpenPage(ctx)
}

// Intercept opens a stealth page and runs the interception flow on it.
func (b *rodBackend) Intercept(ctx context.Context, cfg InterceptionConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	drv, release, err := b.openPage(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	log := loggerFrom(ctx, &b.opts.log)
	return runInterception(ctx, drv, cfg, interceptHooks{
		onBlocked: func(resourceType string) {
			log.Trace().Str("resource_type", resourceType).Msg("Blocked request")
		},
		onCapture: func(link string) {
			log.Debug().Str("link", link).Msg("Captured viewer link")
		},
		onIgnored: func(link string) {
			log.Debug().Str("link", link).Msg("Ignored later viewer link")
		},
		onNavError: func(err error) {
			log.Warn().Err(err).Str("target_url", cfg.TargetURL).Msg("Navigation failed")
		},
	})
}

// Close releases browser resources.
func (b *rodBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	err := b.session.Close()
	b.session = nil
	return err
}

// dialRod connects to the remote browser, or launches a local one.
func (b *rodBackend) dialRod(ctx context.Context) (browserSession, error) {
	s := &rodSession{log: b.opts.log}

	controlURL := b.opts.controlURL
	if b.opts.launch {
		l := launcher.New().Headless(true)

		// Use pre-installed browser if specified (Docker/containerized environments)
		bin := b.opts.browserBin
		if bin == "" {
			bin = os.Getenv("ROD_BROWSER_BIN")
		}
		if bin != "" {
			l = l.Bin(bin)
		}

		// NoSandbox required for CI and containerized environments
		if os.Getenv("CI") == "true" || os.Getenv("ROD_NO_SANDBOX") == "1" || bin != "" {
			l = l.NoSandbox(true)
		}

		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
		}
		s.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		s.killLauncher()
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	s.browser = browser
	return s, nil
}

// rodSession is a connected rod browser, plus its launcher when local.
type rodSession struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	log      zerolog.Logger
}

func (s *rodSession) OpenPage(ctx context.Context) (pageDriver, func(), error) {
	page, err := stealth.Page(s.browser)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	return &rodPage{page: page.Context(ctx)}, func() { _ = page.Close() }, nil
}

func (s *rodSession) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	s.killLauncher()
	return err
}

// killLauncher tears down a locally launched browser and its children.
func (s *rodSession) killLauncher() {
	if s.launcher == nil {
		return
	}
	if pid := s.launcher.PID(); pid > 0 {
		if err := process.KillBrowser(pid); err != nil {
			s.log.Debug().Err(err).Int("pid", pid).Msg("Failed to kill browser process tree")
		}
	}
	s.launcher.Kill()
	s.launcher = nil
}

// rodPage adapts a rod page to pageDriver.
type rodPage struct {
	page *rod.Page
}

// Compile-time interface checks.
var (
	_ pageDriver     = (*rodPage)(nil)
	_ browserSession = (*rodSession)(nil)
)

func (p *rodPage) FilterRequests(block func(resourceType string) bool) (func(), error) {
	router := p.page.HijackRequests()
	err := router.Add("*", "", func(h *rod.Hijack) {
		if block(string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return nil, err
	}

	go router.Run()

	return func() { _ = router.Stop() }, nil
}

func (p *rodPage) ObserveResponses(fn func(responseURL string)) (func(), error) {
	if err := (proto.NetworkEnable{}).Call(p.page); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(p.page.GetContext())
	wait := p.page.Context(ctx).EachEvent(func(e *proto.NetworkResponseReceived) {
		if e.Response != nil {
			fn(e.Response.URL)
		}
	})
	go wait()

	return cancel, nil
}

func (p *rodPage) Navigate(ctx context.Context, target string, wait WaitStrategy) error {
	page := p.page.Context(ctx)

	event := proto.PageLifecycleEventNameDOMContentLoaded
	if wait == WaitNetworkIdle {
		event = proto.PageLifecycleEventNameNetworkIdle
	}

	// Subscribe before navigating so the lifecycle event cannot be missed
	waitReady := page.WaitNavigation(event)
	if err := page.Navigate(target); err != nil {
		return err
	}
	waitReady()

	return ctx.Err()
}
