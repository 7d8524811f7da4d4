package content

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// tablePlaceholder marks where a rendered table goes back in. Letters and
// digits only, so the converter leaves it alone.
const tablePlaceholder = "LLMCRAWLTABLE%dX"

var (
	tableRe    = regexp.MustCompile(`(?is)<table\b[^>]*>.*?</table>`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// ToMarkdown converts html to markdown. Tables are rendered as pipe tables
// separately and put back after conversion so they are not escaped.
func ToMarkdown(html string) (string, error) {
	var tables []string
	html = tableRe.ReplaceAllStringFunc(html, func(t string) string {
		tables = append(tables, tableToMarkdown(t))
		return "<p>" + fmt.Sprintf(tablePlaceholder, len(tables)-1) + "</p>"
	})

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}

	for i := len(tables) - 1; i >= 0; i-- {
		markdown = strings.Replace(markdown, fmt.Sprintf(tablePlaceholder, i), tables[i], 1)
	}
	markdown = blankLines.ReplaceAllString(markdown, "\n\n")
	return strings.TrimSpace(markdown), nil
}

// mainSelectors are tried in order to find the primary region of a page.
var mainSelectors = []string{`[role="feed"]`, `[role="main"]`, "main", "article", "#content", ".content"}

// FitHTML narrows html to its main region, falling back to the body.
func FitHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	for _, sel := range mainSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			if h, err := goquery.OuterHtml(s); err == nil && strings.TrimSpace(s.Text()) != "" {
				return h, nil
			}
		}
	}
	body, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("failed to render body: %w", err)
	}
	return body, nil
}

// FitMarkdown is ToMarkdown over FitHTML.
func FitMarkdown(html string) (string, error) {
	fit, err := FitHTML(html)
	if err != nil {
		return "", err
	}
	return ToMarkdown(fit)
}

// tableToMarkdown renders one <table> as a pipe table. Tables without a
// header row render as nothing.
func tableToMarkdown(tableHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(tableHTML))
	if err != nil {
		return tableHTML
	}

	var b strings.Builder
	doc.Find("table").First().Each(func(_ int, table *goquery.Selection) {
		headerRow := table.Find("thead tr").First()
		if headerRow.Length() == 0 {
			headerRow = table.Find("tr").First()
		}
		headers := cells(headerRow)
		if len(headers) == 0 {
			return
		}

		rows := table.Find("tr").NotSelection(headerRow)

		b.WriteString("\n")
		writeRow(&b, headers)
		sep := make([]string, len(headers))
		for i := range sep {
			sep[i] = "---"
		}
		writeRow(&b, sep)
		rows.Each(func(_ int, row *goquery.Selection) {
			if c := cells(row); len(c) > 0 {
				writeRow(&b, c)
			}
		})
		b.WriteString("\n")
	})
	return b.String()
}

func cells(row *goquery.Selection) []string {
	var out []string
	row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		text := strings.Join(strings.Fields(cell.Text()), " ")
		out = append(out, strings.ReplaceAll(text, "|", `\|`))
	})
	return out
}

func writeRow(b *strings.Builder, cols []string) {
	b.WriteString("| " + strings.Join(cols, " | ") + " |\n")
}
