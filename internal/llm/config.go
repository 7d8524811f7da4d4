// Package llm talks to OpenAI-compatible chat completion endpoints.
package llm

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrMissingToken    = errors.New("llm: api token is required")
	ErrUnknownProvider = errors.New("llm: unknown provider")
)

// Config selects a provider and model. Provider has the form
// "<vendor>/<model>", e.g. "gemini/gemini-2.5-flash-preview-05-20".
type Config struct {
	Provider    string
	APIToken    string // literal token, or "env:NAME" to read NAME from the environment
	BaseURL     string
	Temperature *float64
	MaxTokens   int
}

type vendor struct {
	baseURL string
	envKey  string // empty when no key is needed
}

var vendors = map[string]vendor{
	"openai":     {baseURL: "https://api.openai.com/v1", envKey: "OPENAI_API_KEY"},
	"gemini":     {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai", envKey: "GEMINI_API_KEY"},
	"deepseek":   {baseURL: "https://api.deepseek.com/v1", envKey: "DEEPSEEK_API_KEY"},
	"groq":       {baseURL: "https://api.groq.com/openai/v1", envKey: "GROQ_API_KEY"},
	"openrouter": {baseURL: "https://openrouter.ai/api/v1", envKey: "OPENROUTER_API_KEY"},
	"mistral":    {baseURL: "https://api.mistral.ai/v1", envKey: "MISTRAL_API_KEY"},
	"ollama":     {baseURL: "http://localhost:11434/v1"},
}

// Vendor returns the part of Provider before the first slash.
func (c Config) Vendor() string {
	v, _, _ := strings.Cut(c.Provider, "/")
	return strings.ToLower(v)
}

// Model returns the part of Provider after the first slash.
// "openrouter/google/gemini-pro" yields "google/gemini-pro".
func (c Config) Model() string {
	_, m, ok := strings.Cut(c.Provider, "/")
	if !ok {
		return c.Provider
	}
	return m
}

// EnvKey is the environment variable consulted when APIToken is empty.
func (c Config) EnvKey() string {
	return vendors[c.Vendor()].envKey
}

// Resolve fills in the base URL and token and validates the result.
func (c Config) Resolve() (Config, error) {
	if c.Provider == "" {
		return c, fmt.Errorf("%w: provider is empty", ErrUnknownProvider)
	}
	v, known := vendors[c.Vendor()]
	if !known && c.BaseURL == "" {
		return c, fmt.Errorf("%w: %s (set a base url)", ErrUnknownProvider, c.Vendor())
	}
	if c.BaseURL == "" {
		c.BaseURL = v.baseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	switch {
	case strings.HasPrefix(c.APIToken, "env:"):
		name := strings.TrimPrefix(c.APIToken, "env:")
		c.APIToken = os.Getenv(name)
		if c.APIToken == "" {
			return c, fmt.Errorf("%w: %s is not set", ErrMissingToken, name)
		}
	case c.APIToken == "" && v.envKey != "":
		c.APIToken = os.Getenv(v.envKey)
		if c.APIToken == "" {
			return c, fmt.Errorf("%w: set %s", ErrMissingToken, v.envKey)
		}
	}
	return c, nil
}

// Masked returns a copy with the token hidden, for printing.
func (c Config) Masked() Config {
	if len(c.APIToken) > 8 {
		c.APIToken = c.APIToken[:4] + "..." + c.APIToken[len(c.APIToken)-4:]
	} else if c.APIToken != "" {
		c.APIToken = "***"
	}
	return c
}
