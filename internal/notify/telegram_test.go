package notify

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmcrawl/internal/llm"
	"llmcrawl/internal/model"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, f.err
}

func TestFormatSummary(t *testing.T) {
	posts := []model.Post{
		{Rank: 1, ActorName: "Jane <3", Permalink: "https://fb.com/p/1?a=1&b=2", StoryText: "Selling   a bike"},
		{Rank: 2, StoryText: "no author"},
	}
	out := FormatSummary("https://www.facebook.com/groups/1/", posts, llm.Usage{PromptTokens: 90, CompletionTokens: 10, TotalTokens: 100})

	assert.Contains(t, out, "extracted 2 items")
	assert.Contains(t, out, "tokens: 100 (prompt 90, completion 10)")
	assert.Contains(t, out, `1. <a href="https://fb.com/p/1?a=1&amp;b=2">Jane &lt;3</a>: Selling a bike`)
	assert.Contains(t, out, "2. <b>unknown</b>: no author")
}

func TestFormatSummaryCapsList(t *testing.T) {
	posts := make([]model.Post, 13)
	for i := range posts {
		posts[i] = model.Post{Rank: i + 1, ActorName: "a"}
	}
	out := FormatSummary("u", posts, llm.Usage{})
	assert.Contains(t, out, "10. <b>a</b>")
	assert.NotContains(t, out, "11. ")
	assert.Contains(t, out, "and 3 more")
}

func TestFormatFailure(t *testing.T) {
	out := FormatFailure("https://x/", "timeout <60s>", llm.Usage{TotalTokens: 5})
	assert.Contains(t, out, "crawl failed")
	assert.Contains(t, out, "timeout &lt;60s&gt;")
	assert.Contains(t, out, "tokens: 5")
}

func TestFormatKeepsMarkupWithinLimit(t *testing.T) {
	long := strings.Repeat("<&>", 2000)
	posts := make([]model.Post, 10)
	for i := range posts {
		posts[i] = model.Post{Rank: i + 1, ActorName: long, Permalink: "https://fb.com/p?" + long, StoryText: long}
	}

	out := FormatSummary(long, posts, llm.Usage{})
	assert.LessOrEqual(t, len([]rune(out)), MaxMessageLen)
	assert.Equal(t, strings.Count(out, "<b>"), strings.Count(out, "</b>"))
	assert.Regexp(t, `… and \d+ more$`, out)
	assert.Equal(t, strings.Count(out, "&"), len(entity.FindAllString(out, -1)))

	out = FormatFailure(long, long, llm.Usage{})
	assert.LessOrEqual(t, len([]rune(out)), MaxMessageLen)
	assert.True(t, strings.HasSuffix(out, "tokens: 0"))
	assert.Equal(t, strings.Count(out, "&"), len(entity.FindAllString(out, -1)))
}

var entity = regexp.MustCompile(`&(?:lt|gt|amp|#34|#39);`)

func TestTruncateAtLineBreak(t *testing.T) {
	text := "<b>head</b>\n" + strings.Repeat("x", 20)
	assert.Equal(t, "<b>head</b>", truncate(text, 15))
	assert.Equal(t, text, truncate(text, 100))
	assert.Equal(t, "abc", truncate("abcdef", 3))
}

func TestSendMessage(t *testing.T) {
	f := &fakeSender{}
	tg := &Telegram{bot: f, chatID: 42}

	require.NoError(t, tg.SendMessage(strings.Repeat("x", MaxMessageLen+10)))
	require.Len(t, f.sent, 1)
	assert.Equal(t, int64(42), f.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, f.sent[0].ParseMode)
	assert.Len(t, []rune(f.sent[0].Text), MaxMessageLen)

	f.err = errors.New("forbidden")
	assert.Error(t, tg.SendFailure("u", "e", llm.Usage{}))
}
