// Package crawler fetches pages, cleans them into markdown and runs an
// extraction strategy over the result.
package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"llmcrawl/internal/browser"
	"llmcrawl/internal/cache"
	"llmcrawl/internal/content"
	"llmcrawl/internal/extraction"
	"llmcrawl/internal/logger"

	"github.com/google/uuid"
)

var ErrNotStarted = errors.New("crawler not started")

// Options configures a Crawler.
type Options struct {
	Fetcher string // registered fetcher name, default "browser"
	Browser browser.Config
	Timeout time.Duration
	Cache   cache.Store
	Logger  *logger.Logger
}

// Crawler owns a fetcher between Start and Close.
type Crawler struct {
	opts    Options
	fetcher Fetcher
	log     *logger.Logger
}

func New(opts Options) *Crawler {
	if opts.Fetcher == "" {
		opts.Fetcher = "browser"
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Crawler{opts: opts, log: log}
}

// newWithFetcher wires an existing fetcher, used by tests.
func newWithFetcher(f Fetcher, store cache.Store) *Crawler {
	return &Crawler{opts: Options{Fetcher: f.Name(), Cache: store}, fetcher: f, log: logger.Nop()}
}

// Start creates the fetcher. For the browser fetcher this launches Chromium.
func (c *Crawler) Start(ctx context.Context) error {
	if c.fetcher != nil {
		return nil
	}
	factory, ok := Lookup(c.opts.Fetcher)
	if !ok {
		return fmt.Errorf("%w: %s (available: %s)", ErrUnknownFetcher, c.opts.Fetcher, strings.Join(Fetchers(), ", "))
	}
	f, err := factory(FetcherOptions{Browser: c.opts.Browser, Timeout: c.opts.Timeout, Logger: c.log})
	if err != nil {
		return fmt.Errorf("failed to start %s fetcher: %w", c.opts.Fetcher, err)
	}
	c.fetcher = f
	c.log.Debug("crawler started", "fetcher", f.Name())
	return nil
}

// Close releases the fetcher and the cache. It is safe to call twice.
func (c *Crawler) Close() error {
	var errs []error
	if c.fetcher != nil {
		errs = append(errs, c.fetcher.Close())
		c.fetcher = nil
	}
	if c.opts.Cache != nil {
		errs = append(errs, c.opts.Cache.Close())
		c.opts.Cache = nil
	}
	return errors.Join(errs...)
}

// KillSession closes the page bound to a session id.
func (c *Crawler) KillSession(id string) error {
	if bf, ok := c.fetcher.(*browserFetcher); ok {
		return bf.browser.KillSession(id)
	}
	return nil
}

// NewSessionID returns a random session id.
func NewSessionID() string {
	return "session_" + uuid.NewString()
}

// Run crawls url. Page and extraction failures come back as results with
// Success false; the error is reserved for a crawler that cannot run.
func (c *Crawler) Run(ctx context.Context, url string, cfg RunConfig) ([]Result, error) {
	if c.fetcher == nil {
		return nil, ErrNotStarted
	}
	if cfg.CacheMode == "" {
		cfg.CacheMode = CacheEnabled
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := c.log.With("url", url)
	res := Result{URL: url, SessionID: cfg.SessionID}
	fresh := true

	if cfg.CacheMode.CanRead() && c.opts.Cache != nil {
		entry, err := c.opts.Cache.Get(ctx, url)
		if err != nil {
			log.Warn("cache read failed", "error", err)
		}
		if entry != nil {
			log.Info("cache hit")
			res.StatusCode = entry.StatusCode
			res.HTML = entry.HTML
			res.CleanedHTML = entry.CleanedHTML
			res.Markdown = entry.Markdown
			res.ExtractedContent = entry.ExtractedContent
			res.FromCache = true
			fresh = false
		}
	}

	if !res.FromCache {
		log.Info("fetching", "fetcher", c.fetcher.Name())
		page, err := c.fetcher.Fetch(ctx, url, cfg)
		if err != nil {
			res.ErrorMessage = err.Error()
			return []Result{res}, nil
		}
		res.URL = page.URL
		res.StatusCode = page.StatusCode
		res.HTML = page.HTML
		res.LoadTime = page.LoadTime

		if err := c.render(&res, url, cfg); err != nil {
			res.ErrorMessage = err.Error()
			return []Result{res}, nil
		}
		log.Debug("page rendered", "status", res.StatusCode, "html_bytes", len(res.HTML), "markdown_bytes", len(res.Markdown), "load_time", res.LoadTime)
	}

	if s := cfg.ExtractionStrategy; s != nil && res.ExtractedContent == "" {
		extracted, err := c.extract(ctx, s, &res)
		if err != nil {
			res.ErrorMessage = err.Error()
			return []Result{res}, nil
		}
		res.ExtractedContent = extracted
		fresh = true
	}

	res.Success = true

	if fresh && cfg.CacheMode.CanWrite() && c.opts.Cache != nil {
		err := c.opts.Cache.Set(ctx, &cache.Entry{
			URL:              url,
			StatusCode:       res.StatusCode,
			HTML:             res.HTML,
			CleanedHTML:      res.CleanedHTML,
			Markdown:         res.Markdown,
			ExtractedContent: res.ExtractedContent,
		})
		if err != nil {
			log.Warn("cache write failed", "error", err)
		}
	}

	return []Result{res}, nil
}

func (c *Crawler) render(res *Result, baseURL string, cfg RunConfig) error {
	cleaned, err := content.Clean(res.HTML, content.CleanOptions{
		BaseURL:              baseURL,
		ExcludedTags:         cfg.ExcludedTags,
		ExcludeExternalLinks: cfg.ExcludeExternalLinks,
		RemoveOverlays:       cfg.RemoveOverlayElements,
	})
	if err != nil {
		return err
	}
	markdown, err := content.ToMarkdown(cleaned)
	if err != nil {
		return err
	}
	res.CleanedHTML = cleaned
	res.Markdown = markdown
	return nil
}

func (c *Crawler) extract(ctx context.Context, s extraction.Strategy, res *Result) (string, error) {
	var (
		input string
		err   error
	)
	switch s.InputFormat() {
	case extraction.InputHTML:
		input = res.CleanedHTML
	case extraction.InputFitMarkdown:
		input, err = content.FitMarkdown(res.CleanedHTML)
	default:
		input = res.Markdown
	}
	if err != nil {
		return "", err
	}

	c.log.Info("extracting", "strategy", s.Name(), "input", s.InputFormat(), "input_bytes", len(input))
	blocks, err := s.Extract(ctx, res.URL, input)
	if err != nil {
		return "", fmt.Errorf("extraction failed: %w", err)
	}
	return encodeBlocks(blocks)
}

func encodeBlocks(blocks []extraction.Block) (string, error) {
	if blocks == nil {
		blocks = []extraction.Block{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(blocks); err != nil {
		return "", fmt.Errorf("failed to encode extracted content: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
