package domain

import "time"

// TrendingEntry is one slot of the rebuilt-from-scratch global ranking.
type TrendingEntry struct {
	ArticleID   string    `json:"article_id"`
	Score       float64   `json:"score"`
	PublishedAt time.Time `json:"published_at"`
}
