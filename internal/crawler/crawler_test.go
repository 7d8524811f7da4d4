package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmcrawl/internal/cache"
	"llmcrawl/internal/extraction"
)

const feedHTML = `<html><head><script>track()</script></head><body>
<div role="dialog">Log in</div>
<div role="feed">
  <div class="story"><a href="https://www.facebook.com/jane">Jane</a> sells a bike
  <a href="https://shop.example.org/bike">link</a></div>
</div></body></html>`

type fakeFetcher struct {
	calls  int
	html   string
	err    error
	closed bool
	last   RunConfig
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(ctx context.Context, url string, cfg RunConfig) (*Page, error) {
	f.calls++
	f.last = cfg
	if f.err != nil {
		return nil, f.err
	}
	return &Page{URL: url, StatusCode: 200, HTML: f.html, LoadTime: time.Millisecond}, nil
}

func (f *fakeFetcher) Close() error {
	f.closed = true
	return nil
}

type fakeStrategy struct {
	format extraction.InputFormat
	inputs []string
	blocks []extraction.Block
	err    error
}

func (s *fakeStrategy) Name() string                        { return "fake" }
func (s *fakeStrategy) InputFormat() extraction.InputFormat { return s.format }

func (s *fakeStrategy) Extract(ctx context.Context, url, content string) ([]extraction.Block, error) {
	s.inputs = append(s.inputs, content)
	return s.blocks, s.err
}

func runConfig(s extraction.Strategy, mode CacheMode) RunConfig {
	cfg := DefaultRunConfig()
	cfg.ExtractionStrategy = s
	cfg.CacheMode = mode
	cfg.ExcludeExternalLinks = true
	cfg.RemoveOverlayElements = true
	return cfg
}

func TestRunSuccess(t *testing.T) {
	f := &fakeFetcher{html: feedHTML}
	s := &fakeStrategy{format: extraction.InputMarkdown, blocks: []extraction.Block{{"actorName": "Jane", "error": false}}}
	c := newWithFetcher(f, nil)

	results, err := c.Run(context.Background(), "https://www.facebook.com/groups/1/", runConfig(s, CacheDisabled))
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.True(t, r.Success)
	assert.Empty(t, r.ErrorMessage)
	assert.Equal(t, 200, r.StatusCode)
	assert.NotContains(t, r.CleanedHTML, "track()")
	assert.NotContains(t, r.CleanedHTML, "Log in")
	assert.NotContains(t, r.Markdown, "shop.example.org")
	assert.Contains(t, r.Markdown, "sells a bike")
	assert.JSONEq(t, `[{"actorName":"Jane","error":false}]`, r.ExtractedContent)

	require.Len(t, s.inputs, 1)
	assert.Equal(t, r.Markdown, s.inputs[0])
}

func TestRunInputFormats(t *testing.T) {
	tests := []struct {
		format extraction.InputFormat
		want   string
		not    string
	}{
		{extraction.InputHTML, `role="feed"`, "track()"},
		{extraction.InputFitMarkdown, "sells a bike", "Log in"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			s := &fakeStrategy{format: tt.format}
			c := newWithFetcher(&fakeFetcher{html: feedHTML}, nil)

			results, err := c.Run(context.Background(), "https://www.facebook.com/groups/1/", runConfig(s, CacheDisabled))
			require.NoError(t, err)
			require.True(t, results[0].Success)
			require.Len(t, s.inputs, 1)
			assert.Contains(t, s.inputs[0], tt.want)
			assert.NotContains(t, s.inputs[0], tt.not)
			assert.Equal(t, "[]", results[0].ExtractedContent)
		})
	}
}

func TestRunFetchFailure(t *testing.T) {
	f := &fakeFetcher{err: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	s := &fakeStrategy{format: extraction.InputMarkdown}
	c := newWithFetcher(f, nil)

	results, err := c.Run(context.Background(), "https://nope.invalid/", runConfig(s, CacheDisabled))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].ErrorMessage, "ERR_NAME_NOT_RESOLVED")
	assert.Empty(t, s.inputs)
}

func TestRunExtractionFailure(t *testing.T) {
	s := &fakeStrategy{format: extraction.InputMarkdown, err: errors.New("all chunks failed")}
	c := newWithFetcher(&fakeFetcher{html: feedHTML}, nil)

	results, err := c.Run(context.Background(), "https://www.facebook.com/groups/1/", runConfig(s, CacheDisabled))
	require.NoError(t, err)
	assert.False(t, results[0].Success)
	assert.Equal(t, "extraction failed: all chunks failed", results[0].ErrorMessage)
}

func TestRunUsesCache(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	f := &fakeFetcher{html: feedHTML}
	s := &fakeStrategy{format: extraction.InputMarkdown, blocks: []extraction.Block{{"rank": 1}}}
	c := newWithFetcher(f, store)
	ctx := context.Background()
	url := "https://www.facebook.com/groups/1/"

	first, err := c.Run(ctx, url, runConfig(s, CacheEnabled))
	require.NoError(t, err)
	require.True(t, first[0].Success)
	assert.False(t, first[0].FromCache)

	second, err := c.Run(ctx, url, runConfig(s, CacheEnabled))
	require.NoError(t, err)
	require.True(t, second[0].Success)
	assert.True(t, second[0].FromCache)
	assert.Equal(t, first[0].ExtractedContent, second[0].ExtractedContent)

	assert.Equal(t, 1, f.calls)
	assert.Len(t, s.inputs, 1)

	_, err = c.Run(ctx, url, runConfig(s, CacheBypass))
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls)
}

func TestRunWithoutStart(t *testing.T) {
	c := New(Options{})
	_, err := c.Run(context.Background(), "https://a.b/", DefaultRunConfig())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestRunRejectsBadConfig(t *testing.T) {
	c := newWithFetcher(&fakeFetcher{html: feedHTML}, nil)
	cfg := DefaultRunConfig()
	cfg.CacheMode = "sometimes"
	_, err := c.Run(context.Background(), "https://a.b/", cfg)
	assert.Error(t, err)
}

func TestStartUnknownFetcher(t *testing.T) {
	c := New(Options{Fetcher: "carrier-pigeon"})
	err := c.Start(context.Background())
	assert.ErrorIs(t, err, ErrUnknownFetcher)
}

func TestClose(t *testing.T) {
	f := &fakeFetcher{}
	c := newWithFetcher(f, nil)
	require.NoError(t, c.Close())
	assert.True(t, f.closed)
	require.NoError(t, c.Close())
}

func TestCacheMode(t *testing.T) {
	tests := []struct {
		in        string
		want      CacheMode
		read, wrt bool
	}{
		{"", CacheEnabled, true, true},
		{"ENABLED", CacheEnabled, true, true},
		{"disabled", CacheDisabled, false, false},
		{"read_only", CacheReadOnly, true, false},
		{"write_only", CacheWriteOnly, false, true},
		{"bypass", CacheBypass, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := ParseCacheMode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
			assert.Equal(t, tt.read, m.CanRead())
			assert.Equal(t, tt.wrt, m.CanWrite())
		})
	}

	_, err := ParseCacheMode("sometimes")
	assert.Error(t, err)
}

func TestParseWaitFor(t *testing.T) {
	tests := []struct {
		in     string
		kind   WaitKind
		target string
	}{
		{"", WaitNone, ""},
		{"css:div[role=feed]", WaitCSS, "div[role=feed]"},
		{"js: document.readyState === 'complete'", WaitJS, "document.readyState === 'complete'"},
		{"#content", WaitCSS, "#content"},
	}
	for _, tt := range tests {
		kind, target := ParseWaitFor(tt.in)
		assert.Equal(t, tt.kind, kind, tt.in)
		assert.Equal(t, tt.target, target, tt.in)
	}

	cfg := DefaultRunConfig()
	cfg.WaitFor = "css:"
	assert.Error(t, cfg.Validate())
}

func TestFetchersRegistered(t *testing.T) {
	assert.Equal(t, []string{"browser", "http"}, Fetchers())
}

func TestSameURL(t *testing.T) {
	assert.True(t, sameURL("https://a.b/groups/1/", "https://a.b/groups/1"))
	assert.False(t, sameURL("https://a.b/groups/1", "https://a.b/groups/2"))
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "session_")
}
