// Package extraction turns page content into structured JSON blocks,
// either by prompting an LLM or by evaluating a CSS selector schema.
package extraction

import (
	"context"
	"fmt"
	"strings"

	"llmcrawl/internal/llm"
)

// Block is one extracted record.
type Block = map[string]any

// InputFormat is the page representation a strategy consumes.
type InputFormat string

const (
	InputMarkdown    InputFormat = "markdown"
	InputHTML        InputFormat = "html"
	InputFitMarkdown InputFormat = "fit_markdown"
)

// ParseInputFormat validates an input format name.
func ParseInputFormat(s string) (InputFormat, error) {
	switch f := InputFormat(strings.ToLower(s)); f {
	case InputMarkdown, InputHTML, InputFitMarkdown:
		return f, nil
	case "":
		return InputMarkdown, nil
	default:
		return "", fmt.Errorf("invalid input format: %s", s)
	}
}

// Strategy extracts blocks from one page.
type Strategy interface {
	Name() string
	InputFormat() InputFormat
	Extract(ctx context.Context, url, content string) ([]Block, error)
}

// Chatter is the part of llm.Client the strategies need.
type Chatter interface {
	Chat(ctx context.Context, req llm.Request) (*llm.Completion, error)
}

// errorBlock marks a chunk whose response could not be used.
func errorBlock(index int, msg string) Block {
	return Block{
		"index":   index,
		"error":   true,
		"tags":    []string{"error"},
		"content": msg,
	}
}

// IsError reports whether b is an error block.
func IsError(b Block) bool {
	v, ok := b["error"].(bool)
	return ok && v
}
