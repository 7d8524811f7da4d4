// Package facebook holds the preset for crawling a Facebook group feed.
package facebook

import (
	"time"

	"llmcrawl/internal/crawler"
	"llmcrawl/internal/extraction"
	"llmcrawl/internal/model"
	"llmcrawl/internal/schema"
	"llmcrawl/internal/scraper"
)

const GroupURL = "https://www.facebook.com/groups/222524304582949/"

// SessionID keeps the group tab open between crawls in one process.
const SessionID = "fb_session"

// ProfileDir is the browser profile holding the logged-in cookies.
const ProfileDir = "chrome_profile"

// expandStoriesJS clicks the "See more" button inside every story message.
const expandStoriesJS = `document.querySelectorAll("div.html-div > div[data-ad-rendering-role=story_message]")?.forEach(p => p.querySelector("div[role=button]")?.click());`

const instruction = `
You are given a Facebook group page.
Return an array of model objects (rank, actor, story, permalink, email).
Return **only** valid JSON matching the schema, no markdown.
`

const schemaQuery = `
From the HTML, I have shared a sample of one of the group post story extract the following fields:
rank, actorName, actorUrl, actorId, storyId, permalink, storyText, actorEmail.
Please generate a schema for this`

// Group crawls a Facebook group feed with a logged-in browser profile.
type Group struct{}

func (Group) Name() string { return "facebook.group" }

func (Group) Description() string {
	return "Facebook group feed, one record per story"
}

func (Group) Apply(o *scraper.Options) {
	o.URL = GroupURL
	o.Provider = scraper.DefaultProvider
	o.Instruction = instruction
	o.SchemaQuery = schemaQuery
	o.Schema = schema.MustOf(model.Post{})
	o.ExtractionType = extraction.TypeSchema
	o.InputFormat = extraction.InputMarkdown
	o.ChunkThreshold = 1000
	o.OverlapRate = 0
	o.ApplyChunking = true

	o.Browser.Headless = false
	o.Browser.TextMode = true
	o.Browser.UserDataDir = ProfileDir

	o.Run.CacheMode = crawler.CacheDisabled
	o.Run.RemoveOverlayElements = true
	o.Run.ExcludeExternalLinks = true
	o.Run.ExcludedTags = []string{"script", "style"}
	o.Run.ScanFullPage = true
	o.Run.ScrollDelay = 200 * time.Millisecond
	o.Run.WaitForImages = true
	o.Run.SessionID = SessionID
	o.Run.JSOnly = true
	o.Run.JSCode = []string{expandStoriesJS}
	o.Run.PageTimeout = 60 * time.Second
}

func init() {
	scraper.Register(Group{})
}
