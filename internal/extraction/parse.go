package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	blocksTag = regexp.MustCompile(`(?s)<blocks>(.*?)</blocks>`)
	codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")
)

// ParseBlocks pulls a JSON array of objects out of a model response.
// It looks inside a <blocks> tag and a code fence first, then takes the
// first bracketed value in the text that holds objects. A single object is
// treated as a one-element array, and an object whose only value is an
// array of objects is unwrapped.
func ParseBlocks(response string) ([]Block, error) {
	var blocks []Block
	err := eachJSON(response, func(raw json.RawMessage) bool {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return false
		}
		b, ok := blocksOf(v)
		if ok {
			blocks = b
		}
		return ok
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

func blocksOf(v any) ([]Block, bool) {
	switch t := v.(type) {
	case []any:
		blocks, err := toBlocks(t)
		return blocks, err == nil
	case map[string]any:
		if len(t) == 1 {
			for _, inner := range t {
				if arr, ok := inner.([]any); ok {
					if blocks, err := toBlocks(arr); err == nil {
						return blocks, true
					}
				}
			}
		}
		return []Block{t}, true
	}
	return nil, false
}

func toBlocks(arr []any) ([]Block, error) {
	blocks := make([]Block, 0, len(arr))
	for i, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is %T, not an object", i, item)
		}
		blocks = append(blocks, obj)
	}
	return blocks, nil
}

// eachJSON decodes the values starting at each '[' or '{' of the response
// and hands them to accept until it returns true. Values accept rejects are
// skipped whole.
func eachJSON(response string, accept func(json.RawMessage) bool) error {
	text := strings.TrimSpace(response)
	if m := blocksTag.FindStringSubmatch(text); len(m) > 1 {
		text = strings.TrimSpace(m[1])
	}
	if m := codeFence.FindStringSubmatch(text); len(m) > 1 {
		text = strings.TrimSpace(m[1])
	}

	var (
		firstErr error
		decoded  bool
	)
	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if accept(raw) {
			return nil
		}
		decoded = true
		i += int(dec.InputOffset()) - 1
	}

	switch {
	case decoded:
		return fmt.Errorf("no json objects in response")
	case firstErr != nil:
		return fmt.Errorf("invalid json in response: %w", firstErr)
	default:
		return fmt.Errorf("no json found in response")
	}
}
