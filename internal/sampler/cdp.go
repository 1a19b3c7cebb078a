package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// CDPTabProbe reads the active tab URL from a Chrome DevTools endpoint.
// It connects lazily and reconnects on the next call after any failure.
type CDPTabProbe struct {
	browser    *rod.Browser
	cancel     context.CancelFunc
	logger     *slog.Logger
	controlURL string
	timeout    time.Duration
	mu         sync.Mutex
}

// NewCDPTabProbe creates a probe for the DevTools endpoint at controlURL,
// either an http://host:port address or a ws:// debugger URL.
func NewCDPTabProbe(controlURL string, timeout time.Duration, logger *slog.Logger) *CDPTabProbe {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CDPTabProbe{
		controlURL: controlURL,
		timeout:    timeout,
		logger:     logger,
	}
}

// Read returns the URL of the tab the user is looking at: a focused, visible
// page first, then any visible page, then the first page.
func (p *CDPTabProbe) Read(ctx context.Context) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(ctx); err != nil {
		p.logger.Debug("cdp probe unavailable", "error", err)
		return "", false
	}

	pages, err := p.browser.Timeout(p.timeout).Pages()
	if err != nil {
		p.logger.Debug("cdp probe lost connection", "error", err)
		p.disconnectLocked()
		return "", false
	}

	tabs := make([]tab, 0, len(pages))
	for _, page := range pages {
		info, err := page.Info()
		if err != nil || info == nil || info.URL == "" {
			continue
		}
		t := tab{url: info.URL}
		if res, err := page.Timeout(p.timeout).Eval(tabStateJS); err == nil {
			t.state = res.Value.Int()
		}
		tabs = append(tabs, t)
	}
	return activeTab(tabs)
}

// tabStateJS scores a page: 1 when visible, plus 2 when it has focus.
const tabStateJS = `() => (document.visibilityState === 'visible' ? 1 : 0) + (document.hasFocus() ? 2 : 0)`

type tab struct {
	url   string
	state int
}

// activeTab picks the highest scoring tab, keeping target order on ties.
func activeTab(tabs []tab) (string, bool) {
	best := -1
	for i, t := range tabs {
		if best < 0 || t.state > tabs[best].state {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return tabs[best].url, true
}

// Close drops the connection. The browser itself is left running.
func (p *CDPTabProbe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnectLocked()
	return nil
}

func (p *CDPTabProbe) connectLocked(ctx context.Context) error {
	if p.browser != nil {
		return nil
	}

	resolveCtx, cancelResolve := context.WithTimeout(ctx, p.timeout)
	defer cancelResolve()

	wsURL, err := resolveControlURL(resolveCtx, p.controlURL)
	if err != nil {
		return err
	}

	connCtx, cancel := context.WithCancel(context.Background())
	browser := rod.New().ControlURL(wsURL).Context(connCtx)
	if err := browser.Connect(); err != nil {
		cancel()
		return fmt.Errorf("connect to devtools: %w", err)
	}

	p.browser = browser
	p.cancel = cancel
	p.logger.Info("connected to browser devtools", "url", p.controlURL)
	return nil
}

// disconnectLocked cancels the connection context. Browser.Close would quit the user's browser.
func (p *CDPTabProbe) disconnectLocked() {
	if p.cancel != nil {
		p.cancel()
	}
	p.browser = nil
	p.cancel = nil
}

func resolveControlURL(ctx context.Context, controlURL string) (string, error) {
	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)
	go func() {
		u, err := launcher.ResolveURL(controlURL)
		done <- result{url: u, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("resolve devtools url: %w", r.err)
		}
		return r.url, nil
	case <-ctx.Done():
		return "", fmt.Errorf("resolve devtools url: %w", ctx.Err())
	}
}
