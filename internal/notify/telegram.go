// Package notify sends crawl summaries to a Telegram chat.
package notify

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mattn/go-runewidth"

	"llmcrawl/internal/llm"
	"llmcrawl/internal/model"
)

// MaxMessageLen is Telegram's limit for one message.
const MaxMessageLen = 4096

// maxListed posts are listed individually in a summary.
const maxListed = 10

// Raw text limits, applied before escaping so markup is never cut.
const (
	maxURLLen   = 200
	maxErrorLen = 500
	maxNameLen  = 60
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts HTML messages to one chat.
type Telegram struct {
	bot    sender
	chatID int64
}

// NewTelegram connects to the bot API with token.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// SendMessage sends text in HTML parse mode. Text over the limit is cut at
// the last line break that fits.
func (t *Telegram) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, truncate(text, MaxMessageLen))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

// SendSummary sends FormatSummary for posts.
func (t *Telegram) SendSummary(url string, posts []model.Post, usage llm.Usage) error {
	return t.SendMessage(FormatSummary(url, posts, usage))
}

// SendFailure sends FormatFailure for errMsg.
func (t *Telegram) SendFailure(url, errMsg string, usage llm.Usage) error {
	return t.SendMessage(FormatFailure(url, errMsg, usage))
}

// FormatSummary renders a success message in Telegram HTML. Post lines
// that would push it past MaxMessageLen are counted in the trailer instead.
func FormatSummary(url string, posts []model.Post, usage llm.Usage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ <b>extracted %d items</b>\n", len(posts))
	fmt.Fprintf(&b, "🔗 %s\n", html.EscapeString(clip(url, maxURLLen)))
	fmt.Fprintf(&b, "🧮 tokens: %d (prompt %d, completion %d)\n", usage.TotalTokens, usage.PromptTokens, usage.CompletionTokens)

	// room for the trailer
	budget := MaxMessageLen - 40
	listed := 0
	for _, p := range posts {
		if listed == maxListed {
			break
		}
		line := "\n" + postLine(p)
		if utf8.RuneCountInString(b.String())+utf8.RuneCountInString(line) > budget {
			break
		}
		b.WriteString(line)
		listed++
	}
	if rest := len(posts) - listed; rest > 0 {
		fmt.Fprintf(&b, "\n\n… and %d more", rest)
	}
	return b.String()
}

func postLine(p model.Post) string {
	name := clip(p.ActorName, maxNameLen)
	if name == "" {
		name = "unknown"
	}
	story := runewidth.Truncate(strings.Join(strings.Fields(p.StoryText), " "), 120, "…")
	if p.Permalink != "" && utf8.RuneCountInString(p.Permalink) <= maxURLLen {
		return fmt.Sprintf("%d. <a href=\"%s\">%s</a>: %s", p.Rank, html.EscapeString(p.Permalink), html.EscapeString(name), html.EscapeString(story))
	}
	return fmt.Sprintf("%d. <b>%s</b>: %s", p.Rank, html.EscapeString(name), html.EscapeString(story))
}

// FormatFailure renders an error message in Telegram HTML.
func FormatFailure(url, errMsg string, usage llm.Usage) string {
	return fmt.Sprintf("❌ <b>crawl failed</b>\n🔗 %s\n⚠️ %s\n🧮 tokens: %d",
		html.EscapeString(clip(url, maxURLLen)), html.EscapeString(clip(errMsg, maxErrorLen)), usage.TotalTokens)
}

// clip cuts plain text to n runes.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// truncate cuts s to at most n runes at a line break.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		return cut[:i]
	}
	return cut
}
