package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Post is one story extracted from a group feed.
type Post struct {
	Rank       int    `json:"rank" description:"Position in the list"`
	ActorName  string `json:"actorName"`
	ActorURL   string `json:"actorUrl"`
	ActorID    string `json:"actorId"`
	StoryID    string `json:"storyId"`
	Permalink  string `json:"permalink"`
	StoryText  string `json:"storyText"`
	ActorEmail string `json:"actorEmail"`
}

// Columns is the CSV header matching Post.Row.
var Columns = []string{"rank", "actorName", "actorUrl", "actorId", "storyId", "permalink", "storyText", "actorEmail"}

// Row returns the post as CSV cells in Columns order.
func (p Post) Row() []string {
	return []string{
		strconv.Itoa(p.Rank),
		p.ActorName,
		p.ActorURL,
		p.ActorID,
		p.StoryID,
		p.Permalink,
		p.StoryText,
		p.ActorEmail,
	}
}

// Normalize trims and NFC-normalises every text field.
func (p *Post) Normalize() {
	for _, s := range []*string{&p.ActorName, &p.ActorURL, &p.ActorID, &p.StoryID, &p.Permalink, &p.StoryText, &p.ActorEmail} {
		*s = strings.TrimSpace(norm.NFC.String(*s))
	}
}

// DecodePosts decodes an extracted-content array into posts.
// Blocks flagged with "error": true and records that are not post objects
// are skipped. Only a payload that is not an array is an error.
func DecodePosts(raw []byte) ([]Post, error) {
	var blocks []json.RawMessage
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}

	posts := make([]Post, 0, len(blocks))
	for _, b := range blocks {
		var flag struct {
			Error bool `json:"error"`
		}
		if err := json.Unmarshal(b, &flag); err != nil || flag.Error {
			continue
		}

		var p post
		if err := json.Unmarshal(b, &p); err != nil {
			continue
		}
		out := p.Post()
		out.Normalize()
		posts = append(posts, out)
	}
	return posts, nil
}

// post tolerates the loose types models return.
type post struct {
	Rank       flexInt    `json:"rank"`
	ActorName  flexString `json:"actorName"`
	ActorURL   flexString `json:"actorUrl"`
	ActorID    flexString `json:"actorId"`
	StoryID    flexString `json:"storyId"`
	Permalink  flexString `json:"permalink"`
	StoryText  flexString `json:"storyText"`
	ActorEmail flexString `json:"actorEmail"`
}

func (p post) Post() Post {
	return Post{
		Rank:       int(p.Rank),
		ActorName:  string(p.ActorName),
		ActorURL:   string(p.ActorURL),
		ActorID:    string(p.ActorID),
		StoryID:    string(p.StoryID),
		Permalink:  string(p.Permalink),
		StoryText:  string(p.StoryText),
		ActorEmail: string(p.ActorEmail),
	}
}

// flexInt accepts numbers, floats and numeric strings. Anything else is 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(v)
	return nil
}

// flexString accepts both JSON strings and numbers; ids come back as either.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		*f = ""
		return nil
	}
	*f = flexString(n.String())
	return nil
}
