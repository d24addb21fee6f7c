package article

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	pkgerrors "github.com/pulsefeed/pulsefeed-backend/internal/pkg/errors"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
)

// QueryParams compose as a logical AND; each slice filter is set membership.
type QueryParams struct {
	Text       string
	Topics     []string
	Sources    []string
	Sentiments []domain.Sentiment
	From       time.Time
	To         time.Time
	ExcludeIDs []string
	Page       int
	PageSize   int
}

func (p QueryParams) normalized() QueryParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	return p
}

type Repo interface {
	Put(ctx context.Context, row *domain.Article) error
	GetByID(ctx context.Context, id string) (*domain.Article, error)
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Article, error)
	Query(ctx context.Context, params QueryParams) ([]*domain.Article, int64, error)
	ListPublishedSince(ctx context.Context, since time.Time) ([]*domain.Article, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
}

type repo struct {
	db           *gorm.DB
	log          *logger.Logger
	embeddingDim int
}

func NewRepo(db *gorm.DB, baseLog *logger.Logger, embeddingDim int) Repo {
	return &repo{db: db, log: baseLog.With("repo", "ArticleRepo"), embeddingDim: embeddingDim}
}

// Put validates and upserts by ID. Re-putting the same ID is idempotent.
func (r *repo) Put(ctx context.Context, row *domain.Article) error {
	if err := r.validate(row); err != nil {
		return err
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "body", "summary", "sentiment", "topic", "topics",
				"source", "published_at", "url", "author", "keywords",
				"embedding", "word_count", "reading_minutes", "content_hash",
				"updated_at",
			}),
		}).
		Create(row).Error
	return storeErr(err)
}

func (r *repo) validate(row *domain.Article) error {
	if row == nil {
		return pkgerrors.Validation("article", "required")
	}
	if strings.TrimSpace(row.ID) == "" {
		return pkgerrors.Validation("id", "required")
	}
	if strings.TrimSpace(row.Title) == "" {
		return pkgerrors.Validation("title", "required")
	}
	if strings.TrimSpace(row.Body) == "" {
		return pkgerrors.Validation("body", "required")
	}
	if strings.TrimSpace(row.Source) == "" {
		return pkgerrors.Validation("source", "required")
	}
	if row.PublishedAt.IsZero() {
		return pkgerrors.Validation("published_at", "required")
	}
	if !domain.ValidSentiment(row.Sentiment) {
		return pkgerrors.Validation("sentiment", fmt.Sprintf("unknown value %q", row.Sentiment))
	}
	if len(row.Embedding) == 0 {
		return pkgerrors.Validation("embedding", "required")
	}
	if r.embeddingDim > 0 && len(row.Embedding) != r.embeddingDim {
		return pkgerrors.Validation("embedding", fmt.Sprintf("dimension mismatch: expected=%d got=%d", r.embeddingDim, len(row.Embedding)))
	}
	return nil
}

func (r *repo) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.ErrNotFound
	}
	var row domain.Article
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &row, nil
}

func (r *repo) GetByIDs(ctx context.Context, ids []string) ([]*domain.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []*domain.Article
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, storeErr(err)
	}
	return rows, nil
}

// Query applies all filters as AND and returns one page in publish-time
// descending order, ties broken by ID ascending.
func (r *repo) Query(ctx context.Context, params QueryParams) ([]*domain.Article, int64, error) {
	params = params.normalized()

	q := r.db.WithContext(ctx).Model(&domain.Article{})
	if len(params.Sentiments) > 0 {
		q = q.Where("sentiment IN ?", params.Sentiments)
	}
	if len(params.Topics) > 0 {
		q = q.Where("topic IN ?", params.Topics)
	}
	if len(params.Sources) > 0 {
		q = q.Where("source IN ?", params.Sources)
	}
	if !params.From.IsZero() {
		q = q.Where("published_at >= ?", params.From)
	}
	if !params.To.IsZero() {
		q = q.Where("published_at <= ?", params.To)
	}
	if len(params.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", params.ExcludeIDs)
	}
	if text := strings.TrimSpace(params.Text); text != "" {
		like := "%" + strings.ToLower(text) + "%"
		q = q.Where(
			"(LOWER(title) LIKE ? OR LOWER(summary) LIKE ? OR LOWER(body) LIKE ?)",
			like, like, like,
		)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, storeErr(err)
	}

	var rows []*domain.Article
	err := q.
		Order("published_at DESC").
		Order("id ASC").
		Offset((params.Page - 1) * params.PageSize).
		Limit(params.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return rows, total, nil
}

func (r *repo) ListPublishedSince(ctx context.Context, since time.Time) ([]*domain.Article, error) {
	var rows []*domain.Article
	q := r.db.WithContext(ctx).Model(&domain.Article{})
	if !since.IsZero() {
		q = q.Where("published_at >= ?", since)
	}
	if err := q.Order("published_at DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, storeErr(err)
	}
	return rows, nil
}

func (r *repo) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Article{}).Count(&total).Error; err != nil {
		return 0, storeErr(err)
	}
	return total, nil
}

// Delete is the administrative purge path; articles are otherwise immutable.
func (r *repo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Article{})
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrNotFound
	}
	return nil
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", pkgerrors.ErrStoreUnavailable, err)
	}
	return err
}
