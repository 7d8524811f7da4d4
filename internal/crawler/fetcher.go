package crawler

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"llmcrawl/internal/browser"
	"llmcrawl/internal/logger"
)

var ErrUnknownFetcher = errors.New("unknown fetcher")

// Page is the raw result of fetching a URL.
type Page struct {
	URL        string
	StatusCode int
	HTML       string
	LoadTime   time.Duration
}

// Fetcher turns a URL into rendered HTML.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, url string, cfg RunConfig) (*Page, error)
	Close() error
}

// FetcherOptions is what a factory gets to build its fetcher.
type FetcherOptions struct {
	Browser browser.Config
	Timeout time.Duration
	Logger  *logger.Logger
}

type Factory func(opts FetcherOptions) (Fetcher, error)

var registry = map[string]Factory{}

// Register makes a fetcher factory available under name.
func Register(name string, f Factory) {
	registry[strings.ToLower(name)] = f
}

// Lookup returns the factory registered as name.
func Lookup(name string) (Factory, bool) {
	f, ok := registry[strings.ToLower(name)]
	return f, ok
}

// Fetchers lists registered fetcher names.
func Fetchers() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("browser", newBrowserFetcher)
	Register("http", newHTTPFetcher)
}
