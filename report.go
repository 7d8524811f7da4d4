package main

import (
	"encoding/json"
	"fmt"
	"io"

	"llmcrawl/internal/crawler"
	"llmcrawl/internal/extraction"
	"llmcrawl/internal/formatter"
)

// report prints each crawl result and collects the extracted records.
// A successful result prints its item count and a preview in format; a
// failed or unreadable one prints the error and the token usage table.
func report(w io.Writer, results []crawler.Result, usage *extraction.Usage, format string, preview int) ([]any, []string) {
	var (
		records  []any
		failures []string
	)
	fail := func(msg string) {
		fmt.Fprintln(w, "error:", msg)
		fmt.Fprintln(w, usage.String())
		failures = append(failures, msg)
	}

	for _, r := range results {
		if !r.Success {
			fail(r.ErrorMessage)
			continue
		}

		var data []any
		if err := json.Unmarshal([]byte(r.ExtractedContent), &data); err != nil {
			fail(fmt.Sprintf("invalid extracted content: %v", err))
			continue
		}
		out, err := formatter.Format([]byte(r.ExtractedContent), format)
		if err != nil {
			fail(fmt.Sprintf("failed to format output: %v", err))
			continue
		}

		fmt.Fprintln(w, "extracted", len(data), "items")
		fmt.Fprintln(w, formatter.Preview(out, preview))
		records = append(records, data...)
	}
	return records, failures
}
