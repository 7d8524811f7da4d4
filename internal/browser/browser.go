package browser

import (
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config controls how Chromium is launched.
type Config struct {
	Headless    bool
	ProxyURL    string
	UserDataDir string // persistent profile, keeps logged-in cookies between runs
	TextMode    bool   // disable image loading
	Verbose     bool   // trace CDP calls
	Bin         string // browser binary, empty = rod managed download
}

// DefaultConfig is a headless browser with a throwaway profile.
func DefaultConfig() Config {
	return Config{Headless: true}
}

// Browser wraps a rod.Browser and the pages bound to session ids.
type Browser struct {
	cfg      Config
	browser  *rod.Browser
	launcher *launcher.Launcher

	mu       sync.Mutex
	sessions map[string]*rod.Page
}

// New launches the browser and connects to it.
func New(cfg Config) (*Browser, error) {
	l := newLauncher(cfg)

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u).Trace(cfg.Verbose)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Browser{
		cfg:      cfg,
		browser:  b,
		launcher: l,
		sessions: map[string]*rod.Page{},
	}, nil
}

func newLauncher(cfg Config) *launcher.Launcher {
	l := launcher.New().Headless(cfg.Headless)

	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.ProxyURL != "" {
		l = l.Proxy(cfg.ProxyURL)
	}
	if cfg.UserDataDir != "" {
		l = l.UserDataDir(cfg.UserDataDir)
	}
	if cfg.TextMode {
		l = l.Set("blink-settings", "imagesEnabled=false")
	}
	return l
}

// Config returns the launch configuration.
func (b *Browser) Config() Config {
	return b.cfg
}

// NewPage opens a blank page that is not bound to any session.
func (b *Browser) NewPage() (*rod.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Session returns the page bound to id, opening it on first use. The bool
// reports whether an existing page was reused.
func (b *Browser) Session(id string) (*rod.Page, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.sessions[id]; ok {
		return p, true, nil
	}
	p, err := b.NewPage()
	if err != nil {
		return nil, false, fmt.Errorf("failed to open session %q: %w", id, err)
	}
	b.sessions[id] = p
	return p, false, nil
}

// KillSession closes the page bound to id, if any.
func (b *Browser) KillSession(id string) error {
	b.mu.Lock()
	p, ok := b.sessions[id]
	delete(b.sessions, id)
	b.mu.Unlock()

	if !ok {
		return nil
	}
	return p.Close()
}

// Close closes every session page, the browser and the launcher.
func (b *Browser) Close() error {
	b.mu.Lock()
	for id, p := range b.sessions {
		_ = p.Close()
		delete(b.sessions, id)
	}
	b.mu.Unlock()

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return err
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return nil
}
