package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pulsefeed/pulsefeed-backend/internal/cache"
	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/article"
	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	"github.com/pulsefeed/pulsefeed-backend/internal/pkg/ctxutil"
	pkgerrors "github.com/pulsefeed/pulsefeed-backend/internal/pkg/errors"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/vector"
)

const (
	DefaultSimilarK = 5
	MaxSimilarK     = 50
)

// SimilarArticle pairs a neighbor with its cosine similarity to the anchor.
type SimilarArticle struct {
	Article *domain.Article `json:"article"`
	Score   float64         `json:"score"`
}

type SimilarityService interface {
	// SimilarTo returns up to k nearest neighbors of the given article,
	// nearest first, never including the article itself.
	SimilarTo(ctx context.Context, articleID string, k int) ([]SimilarArticle, error)
}

type similarityService struct {
	log      *logger.Logger
	articles article.Repo
	vectors  vector.Store
	store    cache.Store
}

func NewSimilarityService(baseLog *logger.Logger, articles article.Repo, vectors vector.Store, store cache.Store) SimilarityService {
	return &similarityService{
		log:      baseLog.With("service", "SimilarityService"),
		articles: articles,
		vectors:  vectors,
		store:    store,
	}
}

func (s *similarityService) SimilarTo(ctx context.Context, articleID string, k int) ([]SimilarArticle, error) {
	ctx = ctxutil.Default(ctx)
	if k <= 0 {
		k = DefaultSimilarK
	}
	if k > MaxSimilarK {
		k = MaxSimilarK
	}

	anchor, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if !anchor.HasEmbedding() {
		return nil, fmt.Errorf("%w: article %s", pkgerrors.ErrMissingEmbedding, articleID)
	}

	// Embeddings never change after ingest, so articleID+k keys the result.
	cacheKey := fmt.Sprintf("%s:%d", articleID, k)
	if payload, hit, cacheErr := s.store.Get(ctx, cache.NamespaceSimilarity, cacheKey); cacheErr == nil && hit {
		var cached []SimilarArticle
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	}

	matches, err := s.vectors.Query(ctx, anchor.Embedding, k, []string{anchor.ID})
	if err != nil {
		return nil, err
	}

	out := make([]SimilarArticle, 0, len(matches))
	if len(matches) > 0 {
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m.ID)
		}
		rows, err := s.articles.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]*domain.Article, len(rows))
		for _, row := range rows {
			byID[row.ID] = row
		}
		for _, m := range matches {
			row, ok := byID[m.ID]
			if !ok {
				// Index can briefly lead the document store; skip orphans.
				continue
			}
			out = append(out, SimilarArticle{Article: row, Score: m.Score})
		}
		// Stores order equal scores by ID; rank the newer article first
		// instead once rows are hydrated.
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Score != out[j].Score {
				return out[i].Score > out[j].Score
			}
			return out[i].Article.PublishedAt.After(out[j].Article.PublishedAt)
		})
	}

	if payload, err := json.Marshal(out); err == nil {
		if err := s.store.Set(ctx, cache.NamespaceSimilarity, cacheKey, payload, 0); err != nil {
			s.log.Warn("similarity cache set failed", "key", cacheKey, "error", err)
		}
	}
	return out, nil
}
