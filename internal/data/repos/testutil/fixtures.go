package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
)

// TestEmbeddingDim keeps fixtures small; production defaults to 768.
const TestEmbeddingDim = 8

func Embedding(seed float32) datatypes.JSONSlice[float32] {
	vec := make([]float32, TestEmbeddingDim)
	for i := range vec {
		vec[i] = seed + float32(i)*0.1
	}
	return datatypes.JSONSlice[float32](vec)
}

func SeedArticle(tb testing.TB, tx *gorm.DB, id string, publishedAt time.Time) *domain.Article {
	tb.Helper()
	a := &domain.Article{
		ID:          id,
		Title:       "title " + id,
		Body:        "body text for " + id,
		Summary:     "summary " + id,
		Sentiment:   domain.SentimentNeutral,
		Topic:       "technology",
		Topics:      datatypes.JSONSlice[string]{"technology"},
		Source:      "wire",
		PublishedAt: publishedAt,
		Keywords:    datatypes.JSONSlice[string]{"news"},
		Embedding:   Embedding(1.0),
		ContentHash: fmt.Sprintf("hash-%s", id),
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := tx.Create(a).Error; err != nil {
		tb.Fatalf("seed article %s: %v", id, err)
	}
	return a
}
