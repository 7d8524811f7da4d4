package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"

	"llmcrawl/internal/model"
)

// StoryWidth is the display width of story text in markdown tables.
const StoryWidth = 80

// Formats lists the supported output formats.
func Formats() []string {
	return []string{"json", "yaml", "csv", "markdown"}
}

// Format renders extracted content (a JSON array of records) in format.
func Format(raw []byte, format string) (string, error) {
	switch format {
	case "json", "":
		return toJSON(raw)
	case "yaml":
		return toYAML(raw)
	case "csv":
		return toCSV(raw)
	case "markdown", "md":
		return toMarkdown(raw)
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// Preview cuts s to n runes, appending a marker when something was cut.
// n <= 0 returns s unchanged.
func Preview(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "\n... (" + strconv.Itoa(len(r)-n) + " more characters)"
}

func toJSON(raw []byte) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("invalid extracted content: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func toYAML(raw []byte) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("invalid extracted content: %w", err)
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode yaml: %w", err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func toCSV(raw []byte) (string, error) {
	posts, err := model.DecodePosts(raw)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(model.Columns); err != nil {
		return "", err
	}
	for _, p := range posts {
		if err := w.Write(p.Row()); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func toMarkdown(raw []byte) (string, error) {
	posts, err := model.DecodePosts(raw)
	if err != nil {
		return "", err
	}
	if !hasPosts(posts) {
		return blocksToMarkdown(raw)
	}

	var b strings.Builder
	b.WriteString("| # | Actor | Story | Link |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, p := range posts {
		actor := cell(p.ActorName)
		if p.ActorURL != "" {
			actor = fmt.Sprintf("[%s](%s)", actor, p.ActorURL)
		}
		link := ""
		if p.Permalink != "" {
			link = fmt.Sprintf("[post](%s)", p.Permalink)
		}
		story := runewidth.Truncate(cell(p.StoryText), StoryWidth, "…")
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", p.Rank, actor, story, link)
	}
	return b.String(), nil
}

func hasPosts(posts []model.Post) bool {
	for _, p := range posts {
		if p.ActorName != "" || p.StoryText != "" || p.Permalink != "" {
			return true
		}
	}
	return false
}

// blocksToMarkdown lists free-form blocks, one bullet per block.
func blocksToMarkdown(raw []byte) (string, error) {
	var blocks []map[string]any
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", fmt.Errorf("invalid extracted content: %w", err)
	}

	var b strings.Builder
	for _, blk := range blocks {
		if e, _ := blk["error"].(bool); e {
			continue
		}
		var text string
		switch c := blk["content"].(type) {
		case string:
			text = c
		case []any:
			parts := make([]string, 0, len(c))
			for _, p := range c {
				parts = append(parts, fmt.Sprint(p))
			}
			text = strings.Join(parts, " ")
		default:
			out, _ := json.Marshal(blk)
			text = string(out)
		}
		b.WriteString("- " + strings.Join(strings.Fields(text), " ") + "\n")
	}
	return b.String(), nil
}

func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
