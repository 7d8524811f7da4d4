// Package content cleans captured HTML and converts it to markdown.
package content

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultExcludedTags are always stripped unless the caller overrides them.
var DefaultExcludedTags = []string{"script", "style"}

// CleanOptions controls Clean.
type CleanOptions struct {
	BaseURL              string
	ExcludedTags         []string
	ExcludeExternalLinks bool
	RemoveOverlays       bool
}

// overlaySelectors catches dialogs and banners left in the DOM after the
// in-page overlay removal, or in HTML fetched without a browser.
var overlaySelectors = []string{
	`[role="dialog"]`,
	`[aria-modal="true"]`,
	`[id*="cookie-banner"]`,
	`[class*="cookie-banner"]`,
	`[class*="cookie-consent"]`,
}

// Clean strips excluded tags, overlays and (optionally) external links.
// External anchors are unwrapped so their text survives.
func Clean(html string, opts CleanOptions) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	for _, tag := range opts.ExcludedTags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			doc.Find(tag).Remove()
		}
	}
	doc.Find("noscript").Remove()

	if opts.RemoveOverlays {
		doc.Find(strings.Join(overlaySelectors, ", ")).Remove()
	}

	if opts.ExcludeExternalLinks {
		base := Host(opts.BaseURL)
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if IsExternal(href, base) {
				a.ReplaceWithSelection(a.Contents())
			}
		})
	}

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return out, nil
}

// Host returns the lower-cased host of rawURL without a leading "www.".
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// IsExternal reports whether href points outside baseHost. Relative links,
// fragments and non-http schemes are internal. Subdomains of baseHost
// (m.facebook.com for facebook.com) are internal.
func IsExternal(href, baseHost string) bool {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") && !strings.HasPrefix(lower, "//") {
		return false
	}
	if strings.HasPrefix(lower, "//") {
		href = "https:" + href
	}
	host := Host(href)
	if host == "" || baseHost == "" {
		return false
	}
	if host == baseHost || strings.HasSuffix(host, "."+baseHost) || strings.HasSuffix(baseHost, "."+host) {
		return false
	}
	return true
}

// Text returns the whitespace-collapsed text of html.
func Text(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}
