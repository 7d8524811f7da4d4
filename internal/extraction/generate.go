package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"llmcrawl/internal/llm"
)

const generateSchemaPrompt = `You write CSS extraction schemas.
Given a sample of HTML and a request, return ONE JSON object of the form:
{
  "name": "<short name>",
  "baseSelector": "<css selector matching each repeated item>",
  "fields": [
    {"name": "<key>", "selector": "<css relative to the item>", "type": "text|attribute|html|regex|nested|list", "attribute": "<for attribute>", "pattern": "<for regex>"}
  ]
}
Prefer stable attributes (data-*, role, aria-*) over generated class names.
Return only the JSON object, no markdown.`

// GenerateCSSSchema asks the model to derive a CSS schema from sample HTML.
func GenerateCSSSchema(ctx context.Context, client Chatter, html, query string) (*CSSSchema, error) {
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("sample html is empty")
	}
	resp, err := client.Chat(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: generateSchemaPrompt},
			{Role: "user", Content: fmt.Sprintf("HTML:\n%s\n\nRequest:\n%s", html, query)},
		},
		JSONMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}

	var s CSSSchema
	err = eachJSON(resp.Content, func(raw json.RawMessage) bool {
		s = CSSSchema{}
		return raw[0] == '{' && json.Unmarshal(raw, &s) == nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode generated schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
