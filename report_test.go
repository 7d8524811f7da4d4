package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmcrawl/internal/crawler"
	"llmcrawl/internal/extraction"
	"llmcrawl/internal/llm"
)

func usageOf(tokens ...int) *extraction.Usage {
	u := &extraction.Usage{}
	for _, n := range tokens {
		u.Add(llm.Usage{PromptTokens: n, CompletionTokens: n, TotalTokens: 2 * n})
	}
	return u
}

func TestReportSuccess(t *testing.T) {
	var buf bytes.Buffer
	results := []crawler.Result{{
		Success:          true,
		ExtractedContent: `[{"rank":1,"actorName":"Jane"},{"rank":"N/A","actorName":"Bob"}]`,
	}}

	records, failures := report(&buf, results, usageOf(10), "csv", 1000)
	assert.Len(t, records, 2)
	assert.Empty(t, failures)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "extracted 2 items\n"))
	assert.Contains(t, out, "1,Jane,")
	assert.Contains(t, out, "0,Bob,")
	assert.NotContains(t, out, "Token Usage")
}

func TestReportFailure(t *testing.T) {
	var buf bytes.Buffer
	results := []crawler.Result{{Success: false, ErrorMessage: "navigation timeout"}}

	records, failures := report(&buf, results, usageOf(7, 3), "json", 1000)
	assert.Empty(t, records)
	assert.Equal(t, []string{"navigation timeout"}, failures)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "error: navigation timeout\n"))
	assert.Contains(t, out, "=== Token Usage Summary ===")
	assert.Contains(t, out, "=== Usage History ===")
	assert.NotContains(t, out, "extracted")
}

func TestReportInvalidContentContinues(t *testing.T) {
	var buf bytes.Buffer
	results := []crawler.Result{
		{Success: true, ExtractedContent: `not json`},
		{Success: true, ExtractedContent: `[{"rank":1}]`},
	}

	records, failures := report(&buf, results, usageOf(), "json", 1000)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "invalid extracted content")
	assert.Len(t, records, 1)

	out := buf.String()
	assert.Contains(t, out, "error: invalid extracted content")
	assert.Contains(t, out, "Token Usage Summary")
	assert.Contains(t, out, "extracted 1 items")
}

func TestReportPreviewCut(t *testing.T) {
	var buf bytes.Buffer
	long := strings.Repeat("\u1ec5", 3000)
	results := []crawler.Result{{Success: true, ExtractedContent: `[{"rank":1,"storyText":"` + long + `"}]`}}

	records, failures := report(&buf, results, usageOf(), "json", 1000)
	assert.Len(t, records, 1)
	assert.Empty(t, failures)

	out := buf.String()
	assert.Contains(t, out, " more characters)")
	preview := strings.TrimPrefix(out, "extracted 1 items\n")
	preview = preview[:strings.Index(preview, "\n... (")]
	assert.Equal(t, 1000, len([]rune(preview)))
}
