// Package config resolves command line flags, an optional llmcrawl.yaml,
// LLMCRAWL_* environment variables and .env into one Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"llmcrawl/internal/crawler"
	"llmcrawl/internal/extraction"
	"llmcrawl/internal/formatter"
	"llmcrawl/internal/logger"
)

const EnvPrefix = "LLMCRAWL"

// Config is everything the command needs. Zero values mean "use the
// preset"; IsSet tells an explicit zero from an absent key.
type Config struct {
	URL  string `yaml:"url"`
	Site string `yaml:"site"`

	Provider    string  `yaml:"provider"`
	APIToken    string  `yaml:"api_token"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	Strategy       string  `yaml:"strategy"`
	CSSSchema      string  `yaml:"css_schema"`
	CSSSample      string  `yaml:"css_sample"`
	Instruction    string  `yaml:"instruction"`
	ChunkThreshold int     `yaml:"chunk_threshold"`
	OverlapRate    float64 `yaml:"overlap_rate"`
	NoChunking     bool    `yaml:"no_chunking"`
	InputFormat    string  `yaml:"input_format"`
	Concurrency    int     `yaml:"concurrency"`

	Fetcher     string `yaml:"fetcher"`
	ShowUI      bool   `yaml:"showui"`
	UserDataDir string `yaml:"user_data_dir"`
	TextMode    bool   `yaml:"text_mode"`
	Proxy       string `yaml:"proxy"`
	BrowserBin  string `yaml:"browser_bin"`

	Session     string            `yaml:"session"`
	Timeout     time.Duration     `yaml:"timeout"`
	ScrollDelay time.Duration     `yaml:"scroll_delay"`
	MaxScrolls  int               `yaml:"max_scrolls"`
	WaitFor     string            `yaml:"wait_for"`
	JS          []string          `yaml:"js"`
	Headers     map[string]string `yaml:"headers"`
	UserAgent   string            `yaml:"user_agent"`

	Cache    string `yaml:"cache"`
	CacheDSN string `yaml:"cache_dsn"`

	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	Preview    int    `yaml:"preview"`
	LogLevel   string `yaml:"log_level"`
	Verbose    bool   `yaml:"verbose"`
	DumpConfig bool   `yaml:"dump_config"`

	Notify         bool   `yaml:"notify"`
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`

	set map[string]bool
}

// keys that can override a preset.
var overridable = []string{
	"provider", "instruction", "chunk-threshold", "overlap-rate", "no-chunking",
	"input-format", "showui", "user-data-dir", "text-mode", "proxy", "browser-bin",
	"session", "timeout", "scroll-delay", "max-scrolls", "wait-for", "js",
	"header", "user-agent", "cache", "temperature", "max-tokens",
}

// RegisterFlags declares every flag on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Config file (default ./llmcrawl.yaml)")
	fs.String("site", "facebook.group", "Site preset")

	fs.String("provider", "", "LLM provider as <vendor>/<model> (e.g. gemini/gemini-2.5-flash-preview-05-20)")
	fs.String("api-token", "", "LLM API token, or env:NAME (defaults to the vendor's env var)")
	fs.String("base-url", "", "OpenAI-compatible base URL override")
	fs.Float64("temperature", 0, "Sampling temperature")
	fs.Int("max-tokens", 0, "Max completion tokens per request")

	fs.String("strategy", "llm", "Extraction strategy (llm, css)")
	fs.String("css-schema", "", "CSS extraction schema file (yaml or json)")
	fs.String("css-sample", "", "Sample HTML file to generate a CSS schema from")
	fs.String("instruction", "", "Extraction instruction for the LLM")
	fs.Int("chunk-threshold", 0, "Max estimated tokens per chunk")
	fs.Float64("overlap-rate", 0, "Share of the threshold repeated between chunks, in [0, 1)")
	fs.Bool("no-chunking", false, "Send the whole page in one request")
	fs.String("input-format", "", "Content handed to the LLM (markdown, html, fit_markdown)")
	fs.Int("concurrency", 4, "Chunks extracted in parallel")

	fs.String("fetcher", "browser", "Fetcher ("+strings.Join(crawler.Fetchers(), ", ")+")")
	fs.Bool("showui", false, "Show browser UI (disable headless mode)")
	fs.String("user-data-dir", "", "Persistent browser profile directory")
	fs.Bool("text-mode", false, "Disable image loading")
	fs.StringP("proxy", "p", "", "Proxy URL (e.g. http://127.0.0.1:7890)")
	fs.String("browser-bin", "", "Browser binary (default: rod managed Chromium)")

	fs.String("session", "", "Session id; pages in one session are reused (\"auto\" for a random id)")
	fs.DurationP("timeout", "t", 0, "Page timeout")
	fs.Duration("scroll-delay", 0, "Delay between scroll steps")
	fs.Int("max-scrolls", 0, "Max scroll steps when scanning the full page")
	fs.StringP("wait-for", "w", "", "Wait condition: css:<selector> or js:<predicate>")
	fs.StringArray("js", nil, "JavaScript to run on the page (repeatable)")
	fs.StringArrayP("header", "H", nil, "HTTP header \"Key: Value\" (repeatable)")
	fs.String("user-agent", "", "User agent override")

	fs.String("cache", "", "Cache mode (enabled, disabled, read_only, write_only, bypass)")
	fs.String("cache-dsn", "", "Cache location: directory, postgres:// or libsql:// URL")

	fs.StringP("format", "f", "json", "Output format ("+strings.Join(formatter.Formats(), ", ")+")")
	fs.StringP("output", "o", "", "Write the full formatted records to this file")
	fs.Int("preview", 1000, "Characters of records printed to stdout (0 = all)")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.BoolP("verbose", "v", false, "Verbose logging and LLM debug output")
	fs.Bool("dump-config", false, "Print the resolved configuration")
	fs.Bool("notify", false, "Send a Telegram summary (TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID)")
}

// Load reads .env, the config file, the environment and fs, in increasing
// order of precedence.
func Load(fs *pflag.FlagSet, args []string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("telegram-token", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("telegram-chat-id", "TELEGRAM_CHAT_ID")

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("llmcrawl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "llmcrawl"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Site: v.GetString("site"),

		Provider:    v.GetString("provider"),
		APIToken:    v.GetString("api-token"),
		BaseURL:     v.GetString("base-url"),
		Temperature: v.GetFloat64("temperature"),
		MaxTokens:   v.GetInt("max-tokens"),

		Strategy:       strings.ToLower(v.GetString("strategy")),
		CSSSchema:      v.GetString("css-schema"),
		CSSSample:      v.GetString("css-sample"),
		Instruction:    v.GetString("instruction"),
		ChunkThreshold: v.GetInt("chunk-threshold"),
		OverlapRate:    v.GetFloat64("overlap-rate"),
		NoChunking:     v.GetBool("no-chunking"),
		InputFormat:    v.GetString("input-format"),
		Concurrency:    v.GetInt("concurrency"),

		Fetcher:     strings.ToLower(v.GetString("fetcher")),
		ShowUI:      v.GetBool("showui"),
		UserDataDir: v.GetString("user-data-dir"),
		TextMode:    v.GetBool("text-mode"),
		Proxy:       v.GetString("proxy"),
		BrowserBin:  v.GetString("browser-bin"),

		Session:     v.GetString("session"),
		Timeout:     v.GetDuration("timeout"),
		ScrollDelay: v.GetDuration("scroll-delay"),
		MaxScrolls:  v.GetInt("max-scrolls"),
		WaitFor:     v.GetString("wait-for"),
		JS:          stringArray(fs, v, "js"),
		UserAgent:   v.GetString("user-agent"),

		Cache:    v.GetString("cache"),
		CacheDSN: v.GetString("cache-dsn"),

		Format:     strings.ToLower(v.GetString("format")),
		Output:     v.GetString("output"),
		Preview:    v.GetInt("preview"),
		LogLevel:   v.GetString("log-level"),
		Verbose:    v.GetBool("verbose"),
		DumpConfig: v.GetBool("dump-config"),

		Notify:         v.GetBool("notify"),
		TelegramToken:  v.GetString("telegram-token"),
		TelegramChatID: v.GetInt64("telegram-chat-id"),

		set: map[string]bool{},
	}
	if len(args) > 0 {
		cfg.URL = strings.TrimSpace(args[0])
	}

	headers, err := ParseHeaders(stringArray(fs, v, "header"))
	if err != nil {
		return nil, err
	}
	cfg.Headers = headers

	for _, k := range overridable {
		if v.IsSet(k) {
			cfg.set[k] = true
		}
	}

	// Infer the format from the output file when -f was not given.
	if cfg.Output != "" && !v.IsSet("format") {
		if f := inferFormatFromExtension(cfg.Output); f != "" {
			cfg.Format = f
		}
	}
	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// stringArray reads a repeatable flag without viper's CSV splitting, so
// JavaScript containing commas survives. Falls back to the config file.
func stringArray(fs *pflag.FlagSet, v *viper.Viper, name string) []string {
	if f := fs.Lookup(name); f != nil && f.Changed {
		out, _ := fs.GetStringArray(name)
		return out
	}
	if v.InConfig(name) {
		return v.GetStringSlice(name)
	}
	return nil
}

// IsSet reports whether key was given explicitly.
func (c *Config) IsSet(key string) bool {
	return c.set[key]
}

// Validate checks values that do not depend on the preset.
func (c *Config) Validate() error {
	valid := false
	for _, f := range formatter.Formats() {
		if c.Format == f {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	switch c.Strategy {
	case "llm":
	case "css":
		if c.CSSSchema == "" && c.CSSSample == "" {
			return fmt.Errorf("--css-schema or --css-sample is required with the css strategy")
		}
	default:
		return fmt.Errorf("invalid strategy: %s", c.Strategy)
	}

	if _, ok := crawler.Lookup(c.Fetcher); !ok {
		return fmt.Errorf("%w: %s", crawler.ErrUnknownFetcher, c.Fetcher)
	}
	if _, err := crawler.ParseCacheMode(c.Cache); err != nil {
		return err
	}
	if _, err := extraction.ParseInputFormat(c.InputFormat); err != nil {
		return err
	}
	if c.IsSet("overlap-rate") && (c.OverlapRate < 0 || c.OverlapRate >= 1) {
		return fmt.Errorf("overlap rate must be in [0, 1), got %g", c.OverlapRate)
	}
	if c.IsSet("chunk-threshold") && c.ChunkThreshold <= 0 {
		return fmt.Errorf("chunk threshold must be positive, got %d", c.ChunkThreshold)
	}
	if c.Preview < 0 {
		return fmt.Errorf("preview must not be negative")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	if c.Notify && (c.TelegramToken == "" || c.TelegramChatID == 0) {
		return fmt.Errorf("--notify needs TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
	}
	return nil
}

// Masked returns a copy safe to print.
func (c Config) Masked() Config {
	c.APIToken = mask(c.APIToken)
	c.TelegramToken = mask(c.TelegramToken)
	return c
}

func mask(s string) string {
	if s == "" || strings.HasPrefix(s, "env:") {
		return s
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// ParseHeaders turns "Key: Value" strings into a map.
func ParseHeaders(list []string) (map[string]string, error) {
	if len(list) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(list))
	for _, h := range list {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Key: Value\"", h)
		}
		headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return headers, nil
}

// inferFormatFromExtension infers output format from file extension
func inferFormatFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return "markdown"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".csv":
		return "csv"
	default:
		return ""
	}
}

var errMissingURL = errors.New("no URL given and the site preset has no default")

// NormalizeURL adds https:// when the scheme is missing.
func NormalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return rawURL
	}
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "https://" + rawURL
	}
	return rawURL
}

// NewLogger builds the logger for the configured level.
func (c *Config) NewLogger() *logger.Logger {
	return logger.NewLogger(c.LogLevel)
}
