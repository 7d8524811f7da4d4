package facebook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmcrawl/internal/crawler"
	"llmcrawl/internal/extraction"
	"llmcrawl/internal/scraper"
)

func TestGroupPreset(t *testing.T) {
	p, ok := scraper.Get("facebook.group")
	require.True(t, ok)

	o := scraper.Resolve(p)
	assert.Equal(t, GroupURL, o.URL)
	assert.Equal(t, "gemini/gemini-2.5-flash-preview-05-20", o.Provider)
	assert.Equal(t, extraction.TypeSchema, o.ExtractionType)
	assert.Contains(t, o.Instruction, "Facebook group page")

	props, ok := o.Schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, k := range []string{"rank", "actorName", "actorUrl", "actorId", "storyId", "permalink", "storyText", "actorEmail"} {
		assert.Contains(t, props, k)
	}

	assert.False(t, o.Browser.Headless)
	assert.True(t, o.Browser.TextMode)
	assert.Equal(t, ProfileDir, o.Browser.UserDataDir)

	assert.Equal(t, crawler.CacheDisabled, o.Run.CacheMode)
	assert.Equal(t, SessionID, o.Run.SessionID)
	assert.True(t, o.Run.JSOnly)
	assert.True(t, o.Run.ScanFullPage)
	assert.True(t, o.Run.WaitForImages)
	assert.True(t, o.Run.RemoveOverlayElements)
	assert.True(t, o.Run.ExcludeExternalLinks)
	assert.Equal(t, 200*time.Millisecond, o.Run.ScrollDelay)
	assert.Equal(t, 60*time.Second, o.Run.PageTimeout)
	require.Len(t, o.Run.JSCode, 1)
	assert.Contains(t, o.Run.JSCode[0], "story_message")
	assert.NoError(t, o.Run.Validate())
}
