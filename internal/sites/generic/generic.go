// Package generic is the preset for arbitrary pages: no interaction,
// semantic blocks from the main region of the page.
package generic

import (
	"llmcrawl/internal/extraction"
	"llmcrawl/internal/scraper"
)

const instruction = `Split the page into semantically meaningful blocks.
Skip navigation, ads, cookie notices and footers.`

type Page struct{}

func (Page) Name() string { return "generic" }

func (Page) Description() string {
	return "Any page, free-form content blocks from its main region"
}

func (Page) Apply(o *scraper.Options) {
	o.Instruction = instruction
	o.ExtractionType = extraction.TypeBlock
	o.InputFormat = extraction.InputFitMarkdown
	o.Schema = nil
	o.Run.RemoveOverlayElements = true
}

func init() {
	scraper.Register(Page{})
}
