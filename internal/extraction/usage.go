package extraction

import (
	"fmt"
	"strings"
	"sync"

	"llmcrawl/internal/llm"
)

// Usage accumulates token usage across the requests of a strategy.
// It is safe for concurrent use.
type Usage struct {
	mu       sync.Mutex
	requests []llm.Usage
	total    llm.Usage
}

// Add records one request.
func (u *Usage) Add(x llm.Usage) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.requests = append(u.requests, x)
	u.total = u.total.Add(x)
}

// Total returns the summed usage.
func (u *Usage) Total() llm.Usage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.total
}

// Requests returns a copy of the per-request history.
func (u *Usage) Requests() []llm.Usage {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]llm.Usage, len(u.requests))
	copy(out, u.requests)
	return out
}

// String renders the summary and per-request history.
func (u *Usage) String() string {
	total := u.Total()
	history := u.Requests()

	var sb strings.Builder
	sb.WriteString("=== Token Usage Summary ===\n")
	fmt.Fprintf(&sb, "%-12s %12s\n", "Type", "Count")
	sb.WriteString(strings.Repeat("-", 25) + "\n")
	fmt.Fprintf(&sb, "%-12s %12d\n", "Completion", total.CompletionTokens)
	fmt.Fprintf(&sb, "%-12s %12d\n", "Prompt", total.PromptTokens)
	fmt.Fprintf(&sb, "%-12s %12d\n", "Total", total.TotalTokens)

	if len(history) == 0 {
		return sb.String()
	}

	sb.WriteString("\n=== Usage History ===\n")
	fmt.Fprintf(&sb, "%-10s %12s %12s %12s\n", "Request #", "Completion", "Prompt", "Total")
	sb.WriteString(strings.Repeat("-", 49) + "\n")
	for i, r := range history {
		fmt.Fprintf(&sb, "%-10d %12d %12d %12d\n", i+1, r.CompletionTokens, r.PromptTokens, r.TotalTokens)
	}
	return sb.String()
}
