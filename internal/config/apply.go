package config

import (
	"llmcrawl/internal/crawler"
	"llmcrawl/internal/extraction"
	"llmcrawl/internal/llm"
	"llmcrawl/internal/scraper"
)

// Apply layers the explicit settings over a resolved preset.
func (c *Config) Apply(o *scraper.Options) error {
	if c.URL != "" {
		o.URL = NormalizeURL(c.URL)
	}

	if c.IsSet("provider") {
		o.Provider = c.Provider
	}
	if c.IsSet("instruction") {
		o.Instruction = c.Instruction
	}
	if c.IsSet("chunk-threshold") {
		o.ChunkThreshold = c.ChunkThreshold
	}
	if c.IsSet("overlap-rate") {
		o.OverlapRate = c.OverlapRate
	}
	if c.IsSet("no-chunking") {
		o.ApplyChunking = !c.NoChunking
	}
	if c.IsSet("input-format") {
		f, err := extraction.ParseInputFormat(c.InputFormat)
		if err != nil {
			return err
		}
		o.InputFormat = f
	}

	if c.IsSet("showui") {
		o.Browser.Headless = !c.ShowUI
	}
	if c.IsSet("user-data-dir") {
		o.Browser.UserDataDir = c.UserDataDir
	}
	if c.IsSet("text-mode") {
		o.Browser.TextMode = c.TextMode
	}
	if c.IsSet("proxy") {
		o.Browser.ProxyURL = c.Proxy
	}
	if c.IsSet("browser-bin") {
		o.Browser.Bin = c.BrowserBin
	}

	if c.IsSet("session") {
		o.Run.SessionID = c.Session
		if c.Session == "auto" {
			o.Run.SessionID = crawler.NewSessionID()
		}
	}
	if c.IsSet("timeout") {
		o.Run.PageTimeout = c.Timeout
	}
	if c.IsSet("scroll-delay") {
		o.Run.ScrollDelay = c.ScrollDelay
	}
	if c.IsSet("max-scrolls") {
		o.Run.MaxScrollSteps = c.MaxScrolls
	}
	if c.IsSet("wait-for") {
		o.Run.WaitFor = c.WaitFor
	}
	if len(c.JS) > 0 {
		o.Run.JSCode = c.JS
	}
	if len(c.Headers) > 0 {
		o.Run.Headers = c.Headers
	}
	if c.IsSet("user-agent") {
		o.Run.UserAgent = c.UserAgent
	}
	if c.IsSet("cache") {
		m, err := crawler.ParseCacheMode(c.Cache)
		if err != nil {
			return err
		}
		o.Run.CacheMode = m
	}

	if o.URL == "" {
		return errMissingURL
	}
	return o.Run.Validate()
}

// LLM returns the client settings for the resolved options.
func (c *Config) LLM(o scraper.Options) llm.Config {
	return llm.Config{
		Provider: o.Provider,
		APIToken: c.APIToken,
		BaseURL:  c.BaseURL,
	}
}

// Extraction returns the LLM strategy settings for the resolved options.
func (c *Config) Extraction(o scraper.Options) extraction.LLMConfig {
	e := extraction.DefaultLLMConfig()
	e.Schema = o.Schema
	e.ExtractionType = o.ExtractionType
	e.Instruction = o.Instruction
	e.ChunkTokenThreshold = o.ChunkThreshold
	e.ApplyChunking = o.ApplyChunking
	e.OverlapRate = o.OverlapRate
	e.InputFormat = o.InputFormat
	e.Verbose = c.Verbose
	e.Concurrency = c.Concurrency
	if c.IsSet("temperature") {
		t := c.Temperature
		e.Temperature = &t
	}
	if c.MaxTokens > 0 {
		e.MaxTokens = c.MaxTokens
	}
	return e
}
