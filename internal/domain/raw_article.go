package domain

import "time"

// RawArticle is what the external source fetcher produces, before enrichment.
type RawArticle struct {
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	URL         string    `json:"url,omitempty"`
	Author      string    `json:"author,omitempty"`
}
