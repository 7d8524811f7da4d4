package extraction

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"llmcrawl/internal/llm"
	"llmcrawl/internal/logger"
	"llmcrawl/internal/schema"
)

// ExtractionType selects between schema records and free-form blocks.
type ExtractionType string

const (
	TypeSchema ExtractionType = "schema"
	TypeBlock  ExtractionType = "block"
)

// LLMConfig configures an LLMStrategy.
type LLMConfig struct {
	Schema              schema.Schema
	ExtractionType      ExtractionType
	Instruction         string
	ChunkTokenThreshold int
	ApplyChunking       bool
	OverlapRate         float64
	WordTokenRate       float64
	InputFormat         InputFormat
	Verbose             bool
	Temperature         *float64
	MaxTokens           int
	Concurrency         int
}

// DefaultLLMConfig returns the settings used for a single-page crawl.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		ExtractionType:      TypeSchema,
		ChunkTokenThreshold: 1000,
		ApplyChunking:       true,
		WordTokenRate:       DefaultWordTokenRate,
		InputFormat:         InputMarkdown,
		Concurrency:         4,
	}
}

// Validate checks the numeric settings.
func (c LLMConfig) Validate() error {
	if c.ChunkTokenThreshold <= 0 {
		return fmt.Errorf("chunk token threshold must be positive, got %d", c.ChunkTokenThreshold)
	}
	if c.OverlapRate < 0 || c.OverlapRate >= 1 {
		return fmt.Errorf("overlap rate must be in [0, 1), got %g", c.OverlapRate)
	}
	if c.ExtractionType == TypeSchema && c.Schema == nil {
		return fmt.Errorf("schema extraction needs a schema")
	}
	if c.ExtractionType != TypeSchema && c.ExtractionType != TypeBlock {
		return fmt.Errorf("invalid extraction type: %s", c.ExtractionType)
	}
	return nil
}

// LLMStrategy chunks the page and asks the model for records per chunk.
type LLMStrategy struct {
	client Chatter
	cfg    LLMConfig
	usage  *Usage
	log    *logger.Logger
}

// NewLLMStrategy creates a strategy backed by client.
func NewLLMStrategy(client Chatter, cfg LLMConfig, log *logger.Logger) (*LLMStrategy, error) {
	if cfg.WordTokenRate <= 0 {
		cfg.WordTokenRate = DefaultWordTokenRate
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = InputMarkdown
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LLMStrategy{client: client, cfg: cfg, usage: &Usage{}, log: log.With("strategy", "llm")}, nil
}

func (s *LLMStrategy) Name() string { return "llm" }

func (s *LLMStrategy) InputFormat() InputFormat { return s.cfg.InputFormat }

// Usage returns the accumulated token usage.
func (s *LLMStrategy) Usage() *Usage { return s.usage }

// ShowUsage renders the accumulated token usage.
func (s *LLMStrategy) ShowUsage() string { return s.usage.String() }

type chunkResult struct {
	blocks []Block
	err    error
}

// Extract runs every chunk through the model and concatenates the blocks in
// chunk order. A chunk that fails yields an error block. If every chunk
// failed at the request level the first error is returned.
func (s *LLMStrategy) Extract(ctx context.Context, url, content string) ([]Block, error) {
	var chunks []string
	if s.cfg.ApplyChunking {
		chunks = Chunk(content, s.cfg.ChunkTokenThreshold, s.cfg.OverlapRate, s.cfg.WordTokenRate)
	} else if strings.TrimSpace(content) != "" {
		chunks = []string{content}
	}
	if len(chunks) == 0 {
		return []Block{}, nil
	}

	schemaJSON := ""
	if s.cfg.ExtractionType == TypeSchema {
		var err error
		if schemaJSON, err = s.cfg.Schema.JSON(); err != nil {
			return nil, fmt.Errorf("failed to render schema: %w", err)
		}
	}

	if s.cfg.Verbose {
		s.log.Info("extracting", "url", url, "chunks", len(chunks), "tokens", EstimateTokens(content, s.cfg.WordTokenRate))
	}

	results := make([]chunkResult, len(chunks))
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = chunkResult{err: ctx.Err()}
				return
			}
			defer func() { <-sem }()
			results[i] = s.extractChunk(ctx, i, url, chunk, schemaJSON)
		}(i, chunk)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blocks := []Block{}
	var firstErr error
	failed := 0
	for i, r := range results {
		if r.err != nil {
			failed++
			if firstErr == nil {
				firstErr = r.err
			}
			s.log.Warn("chunk extraction failed", "chunk", i, "error", r.err)
			blocks = append(blocks, errorBlock(i, r.err.Error()))
			continue
		}
		blocks = append(blocks, r.blocks...)
	}
	if failed == len(results) {
		return nil, fmt.Errorf("all %d chunks failed: %w", failed, firstErr)
	}
	return blocks, nil
}

// extractChunk returns err only when the request itself failed; an
// unparseable response becomes an error block.
func (s *LLMStrategy) extractChunk(ctx context.Context, index int, url, chunk, schemaJSON string) chunkResult {
	var prompt string
	if s.cfg.ExtractionType == TypeSchema {
		prompt = buildSchemaPrompt(url, chunk, s.cfg.Instruction, schemaJSON)
	} else {
		prompt = buildBlockPrompt(url, chunk, s.cfg.Instruction)
	}

	resp, err := s.client.Chat(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		return chunkResult{err: err}
	}
	s.usage.Add(resp.Usage)

	blocks, err := ParseBlocks(resp.Content)
	if err != nil {
		s.log.Debug("unparseable response", "chunk", index, "error", err)
		return chunkResult{blocks: []Block{errorBlock(index, resp.Content)}}
	}
	for _, b := range blocks {
		if _, ok := b["error"]; !ok {
			b["error"] = false
		}
	}
	if s.cfg.Verbose {
		s.log.Info("chunk extracted", "chunk", index, "blocks", len(blocks), "tokens", resp.Usage.TotalTokens)
	}
	return chunkResult{blocks: blocks}
}
