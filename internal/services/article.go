package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"

	"golang.org/x/sync/singleflight"

	"github.com/pulsefeed/pulsefeed-backend/internal/cache"
	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/article"
	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	"github.com/pulsefeed/pulsefeed-backend/internal/pkg/ctxutil"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
)

// Pagination is the page metadata attached to every listing response.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
}

func NewPagination(page, pageSize int, total int64) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrev:     page > 1 && total > 0,
	}
}

type ArticlePage struct {
	Items      []*domain.Article `json:"items"`
	Total      int64             `json:"total"`
	Pagination Pagination        `json:"pagination"`
}

type ArticleService interface {
	GetByID(ctx context.Context, id string) (*domain.Article, error)
	List(ctx context.Context, params article.QueryParams) (*ArticlePage, error)
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Article, error)
}

type articleService struct {
	log      *logger.Logger
	articles article.Repo
	store    cache.Store
	flight   singleflight.Group
}

func NewArticleService(baseLog *logger.Logger, articles article.Repo, store cache.Store) ArticleService {
	return &articleService{
		log:      baseLog.With("service", "ArticleService"),
		articles: articles,
		store:    store,
	}
}

// GetByID reads through the request cache; concurrent misses for the same id
// collapse into a single store lookup.
func (s *articleService) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	ctx = ctxutil.Default(ctx)

	if payload, hit, err := s.store.Get(ctx, cache.NamespaceRequest, id); err == nil && hit {
		var row domain.Article
		if err := json.Unmarshal(payload, &row); err == nil {
			return &row, nil
		}
	}

	v, err, _ := s.flight.Do(id, func() (any, error) {
		row, err := s.articles.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(row); err == nil {
			if err := s.store.Set(ctx, cache.NamespaceRequest, id, payload, 0); err != nil {
				s.log.Warn("request cache set failed", "id", id, "error", err)
			}
		}
		return row, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Article), nil
}

func (s *articleService) GetByIDs(ctx context.Context, ids []string) ([]*domain.Article, error) {
	return s.articles.GetByIDs(ctxutil.Default(ctx), ids)
}

// List reads through the query cache, keyed on the digest of the normalized
// filter set. Ingestion clears the whole namespace, so entries never outlive
// the corpus they were computed from by more than one batch.
func (s *articleService) List(ctx context.Context, params article.QueryParams) (*ArticlePage, error) {
	ctx = ctxutil.Default(ctx)
	key := queryCacheKey(params)

	if payload, hit, err := s.store.Get(ctx, cache.NamespaceQuery, key); err == nil && hit {
		var page ArticlePage
		if err := json.Unmarshal(payload, &page); err == nil {
			return &page, nil
		}
	}

	rows, total, err := s.articles.Query(ctx, params)
	if err != nil {
		return nil, err
	}
	page := &ArticlePage{
		Items:      rows,
		Total:      total,
		Pagination: NewPagination(params.Page, params.PageSize, total),
	}

	if payload, err := json.Marshal(page); err == nil {
		if err := s.store.Set(ctx, cache.NamespaceQuery, key, payload, 0); err != nil {
			s.log.Warn("query cache set failed", "key", key, "error", err)
		}
	}
	return page, nil
}

func queryCacheKey(params article.QueryParams) string {
	raw, _ := json.Marshal(params)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}
