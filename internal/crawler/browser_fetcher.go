package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"llmcrawl/internal/browser"
	"llmcrawl/internal/logger"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const (
	idleWindow  = 500 * time.Millisecond
	idleTimeout = 15 * time.Second
)

// idleExcluded are resource types that never block network idle.
var idleExcluded = []proto.NetworkResourceType{
	proto.NetworkResourceTypeImage,
	proto.NetworkResourceTypeMedia,
	proto.NetworkResourceTypeFont,
}

const (
	scrollJS = `() => {
		window.scrollBy(0, window.innerHeight);
		const height = document.documentElement.scrollHeight;
		return {height: height, bottom: window.scrollY + window.innerHeight >= height - 2};
	}`

	waitImagesJS = `() => Promise.race([
		Promise.all(Array.from(document.images)
			.filter(img => !img.complete)
			.map(img => new Promise(r => { img.onload = r; img.onerror = r; }))),
		new Promise(r => setTimeout(r, 5000)),
	])`

	removeOverlaysJS = `() => {
		const sel = '[role="dialog"], [aria-modal="true"], [id*="cookie" i], [class*="cookie" i], [class*="overlay" i], [class*="modal" i]';
		document.querySelectorAll(sel).forEach(el => el.remove());
		for (const el of document.querySelectorAll('body *')) {
			const s = getComputedStyle(el);
			if ((s.position === 'fixed' || s.position === 'sticky') && parseInt(s.zIndex || '0', 10) > 100) {
				el.remove();
			}
		}
		document.body.style.overflow = 'auto';
	}`

	statusJS = `() => {
		const e = performance.getEntriesByType('navigation')[0];
		return e && e.responseStatus ? e.responseStatus : 0;
	}`
)

type browserFetcher struct {
	browser *browser.Browser
	log     *logger.Logger
}

func newBrowserFetcher(opts FetcherOptions) (Fetcher, error) {
	b, err := browser.New(opts.Browser)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &browserFetcher{browser: b, log: log}, nil
}

func (f *browserFetcher) Name() string { return "browser" }

func (f *browserFetcher) Close() error { return f.browser.Close() }

func (f *browserFetcher) Fetch(ctx context.Context, url string, cfg RunConfig) (*Page, error) {
	start := time.Now()

	var (
		page   *rod.Page
		reused bool
		err    error
	)
	if cfg.SessionID != "" {
		page, reused, err = f.browser.Session(cfg.SessionID)
	} else {
		page, err = f.browser.NewPage()
		if err == nil {
			defer page.Close()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	timeout := cfg.PageTimeout
	if timeout <= 0 {
		timeout = DefaultPageTimeout
	}
	p := page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	if cfg.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}
	if len(cfg.Headers) > 0 {
		headerList := make([]string, 0, len(cfg.Headers)*2)
		for k, v := range cfg.Headers {
			headerList = append(headerList, k, v)
		}
		cleanup, err := p.SetExtraHeaders(headerList)
		if err != nil {
			return nil, fmt.Errorf("failed to set headers: %w", err)
		}
		defer cleanup()
	}

	if navigate(p, reused, cfg.JSOnly, url) {
		f.log.Debug("navigating", "url", url, "session", cfg.SessionID)
		idle := p.Timeout(idleTimeout)
		wait := idle.WaitRequestIdle(idleWindow, nil, nil, idleExcluded)
		if err := p.Navigate(url); err != nil {
			idle.CancelTimeout()
			return nil, fmt.Errorf("failed to navigate: %w", err)
		}
		if err := p.WaitLoad(); err != nil {
			idle.CancelTimeout()
			return nil, fmt.Errorf("failed to wait for page load: %w", err)
		}
		wait()
		idle.CancelTimeout()
	} else {
		f.log.Debug("reusing session page", "url", url, "session", cfg.SessionID)
	}

	if err := waitFor(p, cfg.WaitFor); err != nil {
		return nil, err
	}

	for i, code := range cfg.JSCode {
		if strings.TrimSpace(code) == "" {
			continue
		}
		if _, err := p.Eval(fmt.Sprintf("async () => { %s }", code)); err != nil {
			return nil, fmt.Errorf("js code %d failed: %w", i, err)
		}
	}

	if cfg.ScanFullPage {
		if err := scanFullPage(ctx, p, cfg.ScrollDelay, cfg.MaxScrollSteps); err != nil {
			return nil, err
		}
	}
	if cfg.WaitForImages {
		if _, err := p.Eval(waitImagesJS); err != nil {
			f.log.Warn("waiting for images failed", "error", err)
		}
	}
	if cfg.RemoveOverlayElements {
		if _, err := p.Eval(removeOverlaysJS); err != nil {
			f.log.Warn("removing overlays failed", "error", err)
		}
	}
	if err := sleep(ctx, cfg.DelayBeforeReturn); err != nil {
		return nil, err
	}

	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to get page HTML: %w", err)
	}

	finalURL := url
	if info, err := p.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return &Page{
		URL:        finalURL,
		StatusCode: status(p),
		HTML:       html,
		LoadTime:   time.Since(start),
	}, nil
}

// navigate reports whether the page has to load url. A reused JSOnly
// session page that already shows url is left in place.
func navigate(p *rod.Page, reused, jsOnly bool, url string) bool {
	if !reused || !jsOnly {
		return true
	}
	info, err := p.Info()
	if err != nil {
		return true
	}
	return !sameURL(info.URL, url)
}

func sameURL(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}

func waitFor(p *rod.Page, expr string) error {
	kind, target := ParseWaitFor(expr)
	switch kind {
	case WaitCSS:
		if _, err := p.Element(target); err != nil {
			return fmt.Errorf("failed to wait for element '%s': %w", target, err)
		}
	case WaitJS:
		if err := p.Wait(rod.Eval(fmt.Sprintf("() => Boolean(%s)", target))); err != nil {
			return fmt.Errorf("failed to wait for condition '%s': %w", target, err)
		}
	}
	return nil
}

// scanFullPage scrolls one viewport at a time until the bottom stops
// moving or maxSteps is reached, then returns to the top.
func scanFullPage(ctx context.Context, p *rod.Page, delay time.Duration, maxSteps int) error {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxScrollSteps
	}
	lastHeight := -1
	for i := 0; i < maxSteps; i++ {
		res, err := p.Eval(scrollJS)
		if err != nil {
			return fmt.Errorf("failed to scroll: %w", err)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		height := res.Value.Get("height").Int()
		if res.Value.Get("bottom").Bool() && height == lastHeight {
			break
		}
		lastHeight = height
	}
	_, err := p.Eval(`() => window.scrollTo(0, 0)`)
	return err
}

func status(p *rod.Page) int {
	res, err := p.Eval(statusJS)
	if err != nil {
		return 200
	}
	if code := res.Value.Int(); code > 0 {
		return code
	}
	return 200
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
