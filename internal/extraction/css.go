package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"
)

// CSSSchema describes repeated elements and the fields read from each.
type CSSSchema struct {
	Name         string     `json:"name" yaml:"name"`
	BaseSelector string     `json:"baseSelector" yaml:"baseSelector"`
	Fields       []CSSField `json:"fields" yaml:"fields"`
}

// CSSField is one output key. Type is one of text, attribute, html, regex,
// nested or list.
type CSSField struct {
	Name      string     `json:"name" yaml:"name"`
	Selector  string     `json:"selector,omitempty" yaml:"selector,omitempty"`
	Type      string     `json:"type" yaml:"type"`
	Attribute string     `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Pattern   string     `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Default   any        `json:"default,omitempty" yaml:"default,omitempty"`
	Fields    []CSSField `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// LoadCSSSchema reads a schema from a JSON or YAML file.
func LoadCSSSchema(path string) (*CSSSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read css schema: %w", err)
	}
	return ParseCSSSchema(data)
}

// ParseCSSSchema decodes a schema. YAML is a superset of JSON, so both work.
func ParseCSSSchema(data []byte) (*CSSSchema, error) {
	var s CSSSchema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse css schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that selectors and field types are usable.
func (s *CSSSchema) Validate() error {
	if s.BaseSelector == "" {
		return fmt.Errorf("css schema: baseSelector is required")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("css schema: at least one field is required")
	}
	return validateFields(s.Fields)
}

func validateFields(fields []CSSField) error {
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("css schema: field without name")
		}
		switch f.Type {
		case "text", "html", "":
		case "attribute":
			if f.Attribute == "" {
				return fmt.Errorf("css schema: field %q needs an attribute", f.Name)
			}
		case "regex":
			if _, err := regexp.Compile(f.Pattern); err != nil {
				return fmt.Errorf("css schema: field %q: %w", f.Name, err)
			}
		case "nested", "list":
			if err := validateFields(f.Fields); err != nil {
				return err
			}
		default:
			return fmt.Errorf("css schema: field %q has unknown type %q", f.Name, f.Type)
		}
	}
	return nil
}

// CSSStrategy extracts records from HTML without calling a model.
type CSSStrategy struct {
	schema *CSSSchema
}

// NewCSSStrategy creates a strategy for schema.
func NewCSSStrategy(schema *CSSSchema) (*CSSStrategy, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return &CSSStrategy{schema: schema}, nil
}

func (s *CSSStrategy) Name() string { return "css" }

func (s *CSSStrategy) InputFormat() InputFormat { return InputHTML }

// Extract evaluates the schema against html.
func (s *CSSStrategy) Extract(ctx context.Context, url, html string) ([]Block, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	blocks := []Block{}
	doc.Find(s.schema.BaseSelector).Each(func(i int, sel *goquery.Selection) {
		if ctx.Err() != nil {
			return
		}
		item := extractFields(sel, s.schema.Fields)
		if len(item) > 0 {
			blocks = append(blocks, item)
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return blocks, nil
}

func extractFields(sel *goquery.Selection, fields []CSSField) Block {
	item := Block{}
	for _, f := range fields {
		if v, ok := fieldValue(sel, f); ok {
			item[f.Name] = v
		} else if f.Default != nil {
			item[f.Name] = f.Default
		}
	}
	return item
}

func fieldValue(sel *goquery.Selection, f CSSField) (any, bool) {
	target := sel
	if f.Selector != "" {
		target = sel.Find(f.Selector)
	}
	if target.Length() == 0 {
		return nil, false
	}

	switch f.Type {
	case "list":
		var out []any
		target.Each(func(_ int, s *goquery.Selection) {
			if len(f.Fields) > 0 {
				out = append(out, extractFields(s, f.Fields))
			} else {
				out = append(out, strings.TrimSpace(s.Text()))
			}
		})
		return out, true
	case "nested":
		return extractFields(target.First(), f.Fields), true
	}

	first := target.First()
	switch f.Type {
	case "attribute":
		return first.Attr(f.Attribute)
	case "html":
		h, err := goquery.OuterHtml(first)
		if err != nil {
			return nil, false
		}
		return h, true
	case "regex":
		m := regexp.MustCompile(f.Pattern).FindStringSubmatch(first.Text())
		switch {
		case len(m) > 1:
			return m[1], true
		case len(m) == 1:
			return m[0], true
		}
		return nil, false
	default:
		return collapseSpace(first.Text()), true
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// String renders the schema as indented JSON.
func (s *CSSSchema) String() string {
	b, _ := json.MarshalIndent(s, "", "  ")
	return string(b)
}
