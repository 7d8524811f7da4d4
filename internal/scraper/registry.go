package scraper

import (
	"errors"
	"sort"
	"strings"
)

var ErrUnknownSite = errors.New("unknown site")

var registry = map[string]Preset{}

// Register adds a preset under its lowercased name.
func Register(p Preset) {
	registry[strings.ToLower(p.Name())] = p
}

// Get returns the preset registered as name.
func Get(name string) (Preset, bool) {
	p, ok := registry[strings.ToLower(name)]
	return p, ok
}

// Names lists registered presets in order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
