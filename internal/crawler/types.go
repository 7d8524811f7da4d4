package crawler

import (
	"fmt"
	"strings"
	"time"

	"llmcrawl/internal/extraction"
)

// CacheMode decides whether a run may read from and write to the cache.
type CacheMode string

const (
	CacheEnabled   CacheMode = "enabled"
	CacheDisabled  CacheMode = "disabled"
	CacheReadOnly  CacheMode = "read_only"
	CacheWriteOnly CacheMode = "write_only"
	CacheBypass    CacheMode = "bypass"
)

// ParseCacheMode accepts the mode names, case-insensitive. "" is enabled.
func ParseCacheMode(s string) (CacheMode, error) {
	m := CacheMode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return CacheEnabled, nil
	case CacheEnabled, CacheDisabled, CacheReadOnly, CacheWriteOnly, CacheBypass:
		return m, nil
	}
	return "", fmt.Errorf("unknown cache mode: %s", s)
}

func (m CacheMode) CanRead() bool {
	return m == CacheEnabled || m == CacheReadOnly
}

func (m CacheMode) CanWrite() bool {
	return m == CacheEnabled || m == CacheWriteOnly
}

// WaitKind is the kind of condition a WaitFor expression describes.
type WaitKind string

const (
	WaitNone WaitKind = ""
	WaitCSS  WaitKind = "css"
	WaitJS   WaitKind = "js"
)

// ParseWaitFor splits "css:<selector>" or "js:<predicate>". A value
// without a prefix is a CSS selector.
func ParseWaitFor(s string) (WaitKind, string) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return WaitNone, ""
	case strings.HasPrefix(s, "css:"):
		return WaitCSS, strings.TrimSpace(s[len("css:"):])
	case strings.HasPrefix(s, "js:"):
		return WaitJS, strings.TrimSpace(s[len("js:"):])
	default:
		return WaitCSS, s
	}
}

// RunConfig describes one crawl.
type RunConfig struct {
	ExtractionStrategy extraction.Strategy
	CacheMode          CacheMode

	// cleaning
	RemoveOverlayElements bool
	ExcludeExternalLinks  bool
	ExcludedTags          []string

	// page interaction
	ScanFullPage      bool
	ScrollDelay       time.Duration
	MaxScrollSteps    int
	WaitForImages     bool
	SessionID         string
	JSOnly            bool
	JSCode            []string
	WaitFor           string
	PageTimeout       time.Duration
	DelayBeforeReturn time.Duration

	UserAgent string
	Headers   map[string]string
}

const (
	DefaultPageTimeout    = 60 * time.Second
	DefaultScrollDelay    = 200 * time.Millisecond
	DefaultMaxScrollSteps = 50
)

// DefaultRunConfig is a cached crawl without extraction.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		CacheMode:      CacheEnabled,
		ExcludedTags:   []string{"script", "style"},
		ScrollDelay:    DefaultScrollDelay,
		MaxScrollSteps: DefaultMaxScrollSteps,
		PageTimeout:    DefaultPageTimeout,
	}
}

// Validate reports settings that cannot work together.
func (c RunConfig) Validate() error {
	if _, err := ParseCacheMode(string(c.CacheMode)); err != nil {
		return err
	}
	if c.PageTimeout < 0 {
		return fmt.Errorf("page timeout must not be negative")
	}
	if c.ScrollDelay < 0 || c.DelayBeforeReturn < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if kind, target := ParseWaitFor(c.WaitFor); kind != WaitNone && target == "" {
		return fmt.Errorf("empty wait_for target: %q", c.WaitFor)
	}
	return nil
}

// Result is the outcome of crawling one URL.
type Result struct {
	URL              string        `json:"url"`
	Success          bool          `json:"success"`
	StatusCode       int           `json:"status_code,omitempty"`
	HTML             string        `json:"-"`
	CleanedHTML      string        `json:"-"`
	Markdown         string        `json:"markdown,omitempty"`
	ExtractedContent string        `json:"extracted_content,omitempty"`
	ErrorMessage     string        `json:"error_message,omitempty"`
	SessionID        string        `json:"session_id,omitempty"`
	LoadTime         time.Duration `json:"load_time"`
	FromCache        bool          `json:"from_cache"`
}
