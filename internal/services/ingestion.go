package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pulsefeed/pulsefeed-backend/internal/cache"
	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/article"
	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	"github.com/pulsefeed/pulsefeed-backend/internal/pkg/ctxutil"
	pkgerrors "github.com/pulsefeed/pulsefeed-backend/internal/pkg/errors"
	"github.com/pulsefeed/pulsefeed-backend/internal/pkg/httpx"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/ai"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/vector"
	"github.com/pulsefeed/pulsefeed-backend/internal/source"
)

const wordsPerMinute = 200

type IngestionConfig struct {
	Concurrency int
	MaxAttempts int
	RetryBase   time.Duration
	RetryMax    time.Duration
}

func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		Concurrency: 4,
		MaxAttempts: 3,
		RetryBase:   500 * time.Millisecond,
		RetryMax:    5 * time.Second,
	}
}

// BatchFailure records which article failed and at which pipeline stage.
type BatchFailure struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Stage string `json:"stage"`
	Err   string `json:"error"`
}

// BatchReport summarizes one ingestion batch. A failed article never aborts
// the batch; it lands here instead.
type BatchReport struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Skipped   int            `json:"skipped"`
	Failures  []BatchFailure `json:"failures,omitempty"`
}

type IngestionService interface {
	RunBatch(ctx context.Context, raws []domain.RawArticle) *BatchReport
	// RunCycle fetches one batch from the configured source and ingests it.
	RunCycle(ctx context.Context) (*BatchReport, error)
}

type ingestionService struct {
	log      *logger.Logger
	articles article.Repo
	vectors  vector.Store
	enricher ai.Client
	store    cache.Store
	trending TrendingService
	fetcher  source.Fetcher
	cfg      IngestionConfig
}

func NewIngestionService(
	baseLog *logger.Logger,
	articles article.Repo,
	vectors vector.Store,
	enricher ai.Client,
	store cache.Store,
	trending TrendingService,
	fetcher source.Fetcher,
	cfg IngestionConfig,
) IngestionService {
	def := DefaultIngestionConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = def.RetryMax
	}
	return &ingestionService{
		log:      baseLog.With("service", "IngestionService"),
		articles: articles,
		vectors:  vectors,
		enricher: enricher,
		store:    store,
		trending: trending,
		fetcher:  fetcher,
		cfg:      cfg,
	}
}

func (s *ingestionService) RunCycle(ctx context.Context) (*BatchReport, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("no source fetcher configured")
	}
	ctx = ctxutil.Default(ctx)
	raws, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch cycle: %w", err)
	}
	return s.RunBatch(ctx, raws), nil
}

func (s *ingestionService) RunBatch(ctx context.Context, raws []domain.RawArticle) *BatchReport {
	ctx = ctxutil.Default(ctx)
	report := &BatchReport{Total: len(raws)}
	if len(raws) == 0 {
		return report
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, raw := range raws {
		g.Go(func() error {
			id := ArticleID(raw)
			skipped, err := s.ingestOne(gctx, id, raw)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				var se *stageError
				stage := "ingest"
				if errors.As(err, &se) {
					stage = se.stage
				}
				report.Failures = append(report.Failures, BatchFailure{
					ID:    id,
					Title: raw.Title,
					Stage: stage,
					Err:   err.Error(),
				})
				s.log.Warn("article ingest failed", "id", id, "stage", stage, "error", err)
			case skipped:
				report.Skipped++
				report.Succeeded++
			default:
				report.Succeeded++
			}
			// Failures are reported, never propagated, so one bad article
			// cannot cancel the rest of the group.
			return nil
		})
	}
	_ = g.Wait()

	if report.Succeeded > 0 {
		if _, err := s.store.ClearNamespace(ctx, cache.NamespaceQuery); err != nil {
			s.log.Warn("query cache clear after batch failed", "error", err)
		}
		// Personalized feed and search pages are query results too; new
		// articles must show up without waiting out the user-namespace TTL.
		if _, err := s.store.ClearNamespace(ctx, cache.NamespaceUser); err != nil {
			s.log.Warn("user cache clear after batch failed", "error", err)
		}
		if err := s.trending.Refresh(ctx); err != nil {
			s.log.Warn("post-batch trending refresh failed", "error", err)
		}
	}

	s.log.Info("ingestion batch done",
		"total", report.Total,
		"succeeded", report.Succeeded,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e *stageError) Unwrap() error { return e.err }

func atStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &stageError{stage: stage, err: err}
}

func (s *ingestionService) ingestOne(ctx context.Context, id string, raw domain.RawArticle) (skipped bool, err error) {
	if strings.TrimSpace(raw.Title) == "" || strings.TrimSpace(raw.Body) == "" {
		return false, atStage("validate", pkgerrors.Validation("article", "title and body required"))
	}

	hash := ContentHash(raw)
	existing, err := s.articles.GetByID(ctx, id)
	if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
		return false, atStage("store", err)
	}
	if existing != nil && existing.ContentHash == hash {
		return true, nil
	}

	var analysis *ai.Analysis
	if err := s.withRetry(ctx, func() error {
		var aerr error
		analysis, aerr = s.enricher.Analyze(ctx, raw.Title+"\n\n"+raw.Body)
		return aerr
	}); err != nil {
		return false, atStage("enrich", err)
	}

	var embeddings [][]float32
	if err := s.withRetry(ctx, func() error {
		var eerr error
		embeddings, eerr = s.enricher.Embed(ctx, []string{raw.Title + "\n\n" + analysis.Summary})
		return eerr
	}); err != nil {
		return false, atStage("embed", err)
	}
	if len(embeddings) != 1 {
		return false, atStage("embed", fmt.Errorf("%w: expected 1 embedding, got %d", pkgerrors.ErrEmbeddingUnavailable, len(embeddings)))
	}

	words := len(strings.Fields(raw.Body))
	row := &domain.Article{
		ID:             id,
		Title:          raw.Title,
		Body:           raw.Body,
		Summary:        analysis.Summary,
		Sentiment:      analysis.Sentiment,
		Topic:          primaryTopic(analysis.Topics),
		Topics:         analysis.Topics,
		Source:         raw.Source,
		PublishedAt:    raw.PublishedAt.UTC(),
		URL:            raw.URL,
		Author:         raw.Author,
		Keywords:       analysis.Keywords,
		Embedding:      embeddings[0],
		WordCount:      words,
		ReadingMinutes: readingMinutes(words),
		ContentHash:    hash,
	}
	if row.PublishedAt.IsZero() {
		row.PublishedAt = time.Now().UTC()
	}

	if err := s.articles.Put(ctx, row); err != nil {
		return false, atStage("store", err)
	}

	if err := s.vectors.Upsert(ctx, []vector.Vector{{
		ID:     row.ID,
		Values: row.Embedding,
		Metadata: map[string]any{
			"source":       row.Source,
			"topic":        row.Topic,
			"published_at": row.PublishedAt.Format(time.RFC3339),
		},
	}}); err != nil {
		return false, atStage("index", err)
	}

	// The stored row changed, so its point lookup entry is stale now.
	if err := s.store.Invalidate(ctx, cache.NamespaceRequest, row.ID); err != nil {
		s.log.Warn("request cache invalidate failed", "id", row.ID, "error", err)
	}
	return false, nil
}

// withRetry retries provider outages only; validation and store errors are
// deterministic and fail immediately.
func (s *ingestionService) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(httpx.Backoff(s.cfg.RetryBase, s.cfg.RetryMax, attempt-1)):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, pkgerrors.ErrEnrichmentUnavailable) && !errors.Is(lastErr, pkgerrors.ErrEmbeddingUnavailable) {
			return lastErr
		}
	}
	return lastErr
}

// ArticleID derives a stable identifier from the source identity of a raw
// article, so re-fetching the same item always maps to the same row.
func ArticleID(raw domain.RawArticle) string {
	key := raw.URL
	if key == "" {
		key = raw.Title
	}
	sum := sha256.Sum256([]byte(raw.Source + "|" + key))
	return hex.EncodeToString(sum[:16])
}

// ContentHash changes when the title or body change, and nothing else.
func ContentHash(raw domain.RawArticle) string {
	sum := sha256.Sum256([]byte(raw.Title + "\n" + raw.Body))
	return hex.EncodeToString(sum[:])
}

func readingMinutes(words int) int {
	if words <= 0 {
		return 0
	}
	m := (words + wordsPerMinute - 1) / wordsPerMinute
	if m < 1 {
		m = 1
	}
	return m
}

func primaryTopic(topics []string) string {
	if len(topics) == 0 {
		return ""
	}
	return topics[0]
}
