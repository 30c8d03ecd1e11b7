package models

import (
	"time"

	"github.com/samber/lo"
)

// Reference is a citation attached to a topic
type Reference struct {
	Ref  string `json:"ref" toml:"ref"`
	Text string `json:"text" toml:"text"`
}

// Topic groups keywords under a display label
type Topic struct {
	Key        string
	Label      string
	Keywords   []string
	References []Reference
}

// FeedSource is a named remote syndication endpoint
type FeedSource struct {
	Name string `json:"name" toml:"name"`
	URL  string `json:"url" toml:"url"`
}

// RawEntry is a single parsed feed entry before classification
type RawEntry struct {
	Title     string
	Link      string
	Published string
	Updated   string
	Summary   string
	Content   string
}

// NewsItem is a classified entry. Source is a copy of the feed name, not a reference to the feed.
type NewsItem struct {
	Source  string     `json:"source"`
	Title   string     `json:"title"`
	Link    string     `json:"link,omitempty"`
	IsoDate *time.Time `json:"isoDate"`
	Topics  []string   `json:"topics"`
}

// HasTopic reports whether the item was classified under key
func (n NewsItem) HasTopic(key string) bool {
	return lo.Contains(n.Topics, key)
}

type NewsResponse struct {
	Items []NewsItem `json:"items"`
}

type TopicVerses struct {
	Label  string      `json:"label"`
	Verses []Reference `json:"verses"`
}

// VersesResponse maps topic keys to their label and references
type VersesResponse map[string]TopicVerses

type ErrorResponse struct {
	Error string `json:"error"`
}
