package crawler

import (
	"context"
	"fmt"
	"io"
	"time"

	"llmcrawl/internal/logger"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// httpFetcher fetches raw HTML with a Chrome TLS fingerprint. It runs no
// JavaScript, so page interaction settings are ignored.
type httpFetcher struct {
	client tls_client.HttpClient
	log    *logger.Logger
}

func newHTTPFetcher(opts FetcherOptions) (Fetcher, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultPageTimeout
	}

	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(timeout / time.Second)),
		tls_client.WithClientProfile(profiles.Chrome_124),
		tls_client.WithCookieJar(tls_client.NewCookieJar()),
	}
	if opts.Browser.ProxyURL != "" {
		options = append(options, tls_client.WithProxyUrl(opts.Browser.ProxyURL))
	}

	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &httpFetcher{client: client, log: log}, nil
}

func (f *httpFetcher) Name() string { return "http" }

func (f *httpFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func (f *httpFetcher) Fetch(ctx context.Context, url string, cfg RunConfig) (*Page, error) {
	start := time.Now()

	if len(cfg.JSCode) > 0 || cfg.ScanFullPage || cfg.WaitFor != "" {
		f.log.Debug("http fetcher ignores page interaction", "url", url)
	}

	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header = fhttp.Header{
		"accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"accept-language": {"en-US,en;q=0.9"},
		"user-agent":      {ua},
		fhttp.HeaderOrderKey: {
			"accept",
			"accept-language",
			"user-agent",
		},
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http error %d from %s", resp.StatusCode, url)
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Page{
		URL:        finalURL,
		StatusCode: resp.StatusCode,
		HTML:       string(body),
		LoadTime:   time.Since(start),
	}, nil
}
