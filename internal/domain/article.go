package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

func ValidSentiment(s Sentiment) bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Article is the enriched, stored form of an ingested record. Immutable after
// ingest; engagement-derived state lives outside this row.
type Article struct {
	ID             string                       `gorm:"type:text;primaryKey" json:"id"`
	Title          string                       `gorm:"not null" json:"title"`
	Body           string                       `gorm:"type:text;not null" json:"body"`
	Summary        string                       `gorm:"type:text" json:"summary"`
	Sentiment      Sentiment                    `gorm:"type:text;index" json:"sentiment"`
	Topic          string                       `gorm:"index" json:"topic"`
	Topics         datatypes.JSONSlice[string]  `json:"topics"`
	Source         string                       `gorm:"index" json:"source"`
	PublishedAt    time.Time                    `gorm:"not null;index:idx_article_published,sort:desc" json:"published_at"`
	URL            string                       `json:"url,omitempty"`
	Author         string                       `json:"author,omitempty"`
	Keywords       datatypes.JSONSlice[string]  `json:"keywords"`
	Embedding      datatypes.JSONSlice[float32] `json:"-"`
	WordCount      int                          `json:"word_count"`
	ReadingMinutes int                          `json:"reading_minutes"`
	ContentHash    string                       `gorm:"index" json:"-"`
	CreatedAt      time.Time                    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time                    `gorm:"not null" json:"updated_at"`
}

func (Article) TableName() string { return "article" }

func (a *Article) HasEmbedding() bool {
	return a != nil && len(a.Embedding) > 0
}

// HasTopic reports set membership against the article's topic labels.
func (a *Article) HasTopic(topic string) bool {
	for _, t := range a.Topics {
		if t == topic {
			return true
		}
	}
	return false
}
