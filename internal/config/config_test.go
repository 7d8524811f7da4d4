package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmcrawl/internal/crawler"
	"llmcrawl/internal/extraction"
	"llmcrawl/internal/scraper"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("llmcrawl", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return Load(fs, fs.Args())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, "facebook.group", cfg.Site)
	assert.Equal(t, "llm", cfg.Strategy)
	assert.Equal(t, "browser", cfg.Fetcher)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, 1000, cfg.Preview)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.URL)
	assert.False(t, cfg.IsSet("provider"))
	assert.False(t, cfg.IsSet("js"))
}

func TestLoadFlags(t *testing.T) {
	cfg, err := load(t,
		"--provider", "openai/gpt-4o-mini",
		"--js", `document.querySelectorAll("a, b").forEach(x => x.click())`,
		"--js", "window.scrollTo(0, 0)",
		"-H", "Accept-Language: vi-VN",
		"-o", "posts.csv",
		"-v",
		"https://www.facebook.com/groups/1/",
	)
	require.NoError(t, err)

	assert.Equal(t, "https://www.facebook.com/groups/1/", cfg.URL)
	assert.True(t, cfg.IsSet("provider"))
	assert.Equal(t, "openai/gpt-4o-mini", cfg.Provider)
	assert.Equal(t, []string{`document.querySelectorAll("a, b").forEach(x => x.click())`, "window.scrollTo(0, 0)"}, cfg.JS)
	assert.Equal(t, map[string]string{"Accept-Language": "vi-VN"}, cfg.Headers)
	assert.Equal(t, "csv", cfg.Format)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadExplicitFormatWinsOverExtension(t *testing.T) {
	cfg, err := load(t, "-o", "posts.csv", "-f", "yaml")
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.Format)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("LLMCRAWL_INSTRUCTION", "from env")
	t.Setenv("LLMCRAWL_CHUNK_THRESHOLD", "2000")

	cfg, err := load(t)
	require.NoError(t, err)
	assert.True(t, cfg.IsSet("instruction"))
	assert.Equal(t, "from env", cfg.Instruction)
	assert.Equal(t, 2000, cfg.ChunkThreshold)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llmcrawl.yaml")
	data := `
provider: deepseek/deepseek-chat
chunk-threshold: 500
scroll-delay: 1s
js:
  - "document.body.click()"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := load(t, "--config", path, "--chunk-threshold", "800")
	require.NoError(t, err)
	assert.Equal(t, "deepseek/deepseek-chat", cfg.Provider)
	assert.Equal(t, 800, cfg.ChunkThreshold)
	assert.Equal(t, time.Second, cfg.ScrollDelay)
	assert.Equal(t, []string{"document.body.click()"}, cfg.JS)
	assert.True(t, cfg.IsSet("scroll-delay"))
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"format", []string{"-f", "xml"}},
		{"strategy", []string{"--strategy", "xpath"}},
		{"css without schema", []string{"--strategy", "css"}},
		{"overlap", []string{"--overlap-rate", "1"}},
		{"threshold", []string{"--chunk-threshold", "0"}},
		{"cache", []string{"--cache", "sometimes"}},
		{"fetcher", []string{"--fetcher", "ftp"}},
		{"input format", []string{"--input-format", "pdf"}},
		{"log level", []string{"--log-level", "loud"}},
		{"header", []string{"-H", "no-colon"}},
		{"preview", []string{"--preview", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestLoadNotifyNeedsTelegram(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	_, err := load(t, "--notify")
	assert.Error(t, err)

	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200")
	cfg, err := load(t, "--notify")
	require.NoError(t, err)
	assert.Equal(t, int64(-100200), cfg.TelegramChatID)
}

func presetOptions() scraper.Options {
	o := scraper.DefaultOptions()
	o.URL = "https://www.facebook.com/groups/222524304582949/"
	o.Provider = "gemini/gemini-2.5-flash-preview-05-20"
	o.Instruction = "preset instruction"
	o.Browser.Headless = false
	o.Run.CacheMode = crawler.CacheDisabled
	o.Run.SessionID = "fb_session"
	o.Run.PageTimeout = time.Minute
	return o
}

func TestApplyKeepsPresetWhenUnset(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	o := presetOptions()
	require.NoError(t, cfg.Apply(&o))
	assert.Equal(t, presetOptions().URL, o.URL)
	assert.Equal(t, "gemini/gemini-2.5-flash-preview-05-20", o.Provider)
	assert.Equal(t, "preset instruction", o.Instruction)
	assert.False(t, o.Browser.Headless)
	assert.Equal(t, crawler.CacheDisabled, o.Run.CacheMode)
	assert.Equal(t, "fb_session", o.Run.SessionID)
	assert.Equal(t, time.Minute, o.Run.PageTimeout)
}

func TestApplyOverrides(t *testing.T) {
	cfg, err := load(t,
		"--showui=false",
		"--session", "auto",
		"-t", "30s",
		"--cache", "enabled",
		"--instruction", "",
		"--no-chunking",
		"--input-format", "fit_markdown",
		"--proxy", "http://127.0.0.1:7890",
		"example.com/page",
	)
	require.NoError(t, err)

	o := presetOptions()
	require.NoError(t, cfg.Apply(&o))
	assert.Equal(t, "https://example.com/page", o.URL)
	assert.True(t, o.Browser.Headless)
	assert.True(t, strings.HasPrefix(o.Run.SessionID, "session_"))
	assert.Equal(t, 30*time.Second, o.Run.PageTimeout)
	assert.Equal(t, crawler.CacheEnabled, o.Run.CacheMode)
	assert.Empty(t, o.Instruction)
	assert.False(t, o.ApplyChunking)
	assert.Equal(t, extraction.InputFitMarkdown, o.InputFormat)
	assert.Equal(t, "http://127.0.0.1:7890", o.Browser.ProxyURL)
}

func TestApplyNeedsURL(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	o := scraper.DefaultOptions()
	assert.Error(t, cfg.Apply(&o))
}

func TestExtractionSettings(t *testing.T) {
	cfg, err := load(t, "--temperature", "0.6", "--max-tokens", "2000", "--concurrency", "2")
	require.NoError(t, err)

	o := presetOptions()
	o.ExtractionType = extraction.TypeSchema
	e := cfg.Extraction(o)
	require.NotNil(t, e.Temperature)
	assert.InDelta(t, 0.6, *e.Temperature, 1e-9)
	assert.Equal(t, 2000, e.MaxTokens)
	assert.Equal(t, 2, e.Concurrency)
	assert.Equal(t, "preset instruction", e.Instruction)
	assert.Equal(t, 1000, e.ChunkTokenThreshold)

	l := cfg.LLM(o)
	assert.Equal(t, "gemini/gemini-2.5-flash-preview-05-20", l.Provider)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://a.b/c", NormalizeURL(" a.b/c "))
	assert.Equal(t, "http://a.b", NormalizeURL("http://a.b"))
	assert.Equal(t, "HTTPS://a.b", NormalizeURL("HTTPS://a.b"))
	assert.Equal(t, "", NormalizeURL(""))
}

func TestMasked(t *testing.T) {
	cfg := Config{APIToken: "sk-1234567890abcd", TelegramToken: "short"}
	m := cfg.Masked()
	assert.Equal(t, "sk-1****abcd", m.APIToken)
	assert.Equal(t, "****", m.TelegramToken)
	assert.Equal(t, "sk-1234567890abcd", cfg.APIToken)
	assert.Equal(t, "env:GEMINI_API_KEY", Config{APIToken: "env:GEMINI_API_KEY"}.Masked().APIToken)
}
