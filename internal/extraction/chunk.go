package extraction

import (
	"math"
	"regexp"
	"strings"
)

// DefaultWordTokenRate approximates tokens per whitespace-separated word.
const DefaultWordTokenRate = 0.75

var sectionBreak = regexp.MustCompile(`\n\s*\n`)

// EstimateTokens approximates the token count of s.
func EstimateTokens(s string, wordTokenRate float64) int {
	if wordTokenRate <= 0 {
		wordTokenRate = DefaultWordTokenRate
	}
	return int(math.Ceil(float64(len(strings.Fields(s))) * wordTokenRate))
}

// Chunk splits text into pieces of at most threshold estimated tokens.
// Sections (blank-line separated) are packed greedily; a section larger than
// the threshold is cut on word boundaries. With overlapRate > 0 every chunk
// after the first starts with the last threshold*overlapRate tokens' worth of
// words from the chunk before it.
func Chunk(text string, threshold int, overlapRate, wordTokenRate float64) []string {
	if wordTokenRate <= 0 {
		wordTokenRate = DefaultWordTokenRate
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if threshold <= 0 {
		return []string{text}
	}

	limit := int(float64(threshold) / wordTokenRate)
	if limit < 1 {
		limit = 1
	}

	type piece struct {
		text  string
		words int
	}
	var pieces []piece
	for _, sec := range sectionBreak.Split(text, -1) {
		sec = strings.TrimSpace(sec)
		if sec == "" {
			continue
		}
		words := strings.Fields(sec)
		if len(words) <= limit {
			pieces = append(pieces, piece{text: sec, words: len(words)})
			continue
		}
		for start := 0; start < len(words); start += limit {
			end := min(start+limit, len(words))
			pieces = append(pieces, piece{text: strings.Join(words[start:end], " "), words: end - start})
		}
	}

	var chunks []string
	var cur []string
	curWords := 0
	for _, p := range pieces {
		if curWords > 0 && curWords+p.words > limit {
			chunks = append(chunks, strings.Join(cur, "\n\n"))
			cur, curWords = nil, 0
		}
		cur = append(cur, p.text)
		curWords += p.words
	}
	if curWords > 0 {
		chunks = append(chunks, strings.Join(cur, "\n\n"))
	}

	overlap := int(float64(threshold) * overlapRate / wordTokenRate)
	if overlap <= 0 || len(chunks) < 2 {
		return chunks
	}

	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1])
		if len(prev) > overlap {
			prev = prev[len(prev)-overlap:]
		}
		out[i] = strings.Join(prev, " ") + "\n\n" + chunks[i]
	}
	return out
}
