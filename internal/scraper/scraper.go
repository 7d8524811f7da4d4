package scraper

import (
	"llmcrawl/internal/browser"
	"llmcrawl/internal/crawler"
	"llmcrawl/internal/extraction"
	"llmcrawl/internal/schema"
)

// DefaultProvider is the model used when neither the preset nor the user
// picks one.
const DefaultProvider = "gemini/gemini-2.5-flash-preview-05-20"

// Preset fills in everything a site needs: where to go, what to click,
// and what to ask the model for.
type Preset interface {
	Name() string
	Description() string
	Apply(o *Options)
}

// Options is the full description of one crawl before user overrides.
type Options struct {
	URL            string
	Provider       string
	Instruction    string
	SchemaQuery    string // prompt for generating a CSS schema from sample HTML
	Schema         schema.Schema
	ExtractionType extraction.ExtractionType
	InputFormat    extraction.InputFormat
	ChunkThreshold int
	OverlapRate    float64
	ApplyChunking  bool
	Browser        browser.Config
	Run            crawler.RunConfig
}

// DefaultOptions is a headless, cached crawl with block extraction.
func DefaultOptions() Options {
	llm := extraction.DefaultLLMConfig()
	return Options{
		Provider:       DefaultProvider,
		ExtractionType: extraction.TypeBlock,
		InputFormat:    llm.InputFormat,
		ChunkThreshold: llm.ChunkTokenThreshold,
		OverlapRate:    llm.OverlapRate,
		ApplyChunking:  llm.ApplyChunking,
		Browser:        browser.DefaultConfig(),
		Run:            crawler.DefaultRunConfig(),
	}
}

// Resolve returns DefaultOptions with the preset applied.
func Resolve(p Preset) Options {
	o := DefaultOptions()
	p.Apply(&o)
	return o
}
