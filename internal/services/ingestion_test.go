package services

import (
	"context"
	"testing"
	"time"

	"github.com/pulsefeed/pulsefeed-backend/internal/cache"
	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/article"
	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/testutil"
	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	"github.com/pulsefeed/pulsefeed-backend/internal/engagement"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/vector"
	"github.com/pulsefeed/pulsefeed-backend/internal/source"
)

type ingestionFixture struct {
	svc      IngestionService
	ai       *fakeAIClient
	repo     article.Repo
	vectors  vector.Store
	store    cache.Store
	trending TrendingService
}

func newIngestionFixture(t *testing.T, fetcher *fakeFetcher) *ingestionFixture {
	t.Helper()
	tx := testutil.Tx(t, testutil.DB(t))
	log := testutil.Logger(t)
	repo := article.NewRepo(tx, log, testutil.TestEmbeddingDim)
	vectors := vector.NewMemoryStore(testutil.TestEmbeddingDim)
	store := cache.NewMemoryStore(cache.DefaultTTLPolicy())
	tracker := engagement.NewMemoryTracker(engagement.DefaultWeights(), time.Hour)
	trending := NewTrendingService(log, repo, tracker, engagement.DefaultWeights(), DefaultTrendingConfig())
	client := newFakeAIClient()

	var src source.Fetcher
	if fetcher != nil {
		src = fetcher
	}

	svc := NewIngestionService(log, repo, vectors, client, store, trending, src, IngestionConfig{
		Concurrency: 1,
		MaxAttempts: 3,
		RetryBase:   time.Millisecond,
		RetryMax:    2 * time.Millisecond,
	})
	return &ingestionFixture{svc: svc, ai: client, repo: repo, vectors: vectors, store: store, trending: trending}
}

func rawArticle(title string) domain.RawArticle {
	return domain.RawArticle{
		Title:       title,
		Body:        "Body of " + title + " with enough words to count reading time properly.",
		Source:      "wire",
		PublishedAt: time.Now().UTC().Add(-time.Hour),
		URL:         "https://example.com/" + title,
	}
}

func TestRunBatchEnrichesAndStores(t *testing.T) {
	f := newIngestionFixture(t, nil)
	ctx := context.Background()
	raw := rawArticle("alpha")

	report := f.svc.RunBatch(ctx, []domain.RawArticle{raw})
	if report.Total != 1 || report.Succeeded != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	row, err := f.repo.GetByID(ctx, ArticleID(raw))
	if err != nil {
		t.Fatalf("stored article: %v", err)
	}
	if row.Summary == "" || row.Sentiment != domain.SentimentNeutral {
		t.Fatalf("enrichment missing: %+v", row)
	}
	if row.Topic != "technology" || len(row.Topics) != 2 {
		t.Fatalf("topics missing: topic=%q topics=%v", row.Topic, row.Topics)
	}
	if len(row.Embedding) != testutil.TestEmbeddingDim {
		t.Fatalf("embedding missing, dim=%d", len(row.Embedding))
	}
	if row.WordCount == 0 || row.ReadingMinutes != 1 {
		t.Fatalf("reading metadata missing: words=%d minutes=%d", row.WordCount, row.ReadingMinutes)
	}

	matches, err := f.vectors.Query(ctx, row.Embedding, 5, nil)
	if err != nil || len(matches) != 1 || matches[0].ID != row.ID {
		t.Fatalf("vector index missing the article: %v err=%v", matches, err)
	}

	if top := f.trending.Top(ctx, 5); len(top) != 1 {
		t.Fatalf("batch must refresh trending, got %v", top)
	}
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	f := newIngestionFixture(t, nil)
	f.ai.failTitles["bravo"] = true
	ctx := context.Background()

	report := f.svc.RunBatch(ctx, []domain.RawArticle{
		rawArticle("alpha"), rawArticle("bravo"), rawArticle("charlie"),
	})
	if report.Total != 3 || report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("one failure must not sink the batch: %+v", report)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected one failure entry, got %v", report.Failures)
	}
	fail := report.Failures[0]
	if fail.Stage != "enrich" || fail.Title != "bravo" {
		t.Fatalf("unexpected failure record: %+v", fail)
	}

	if _, err := f.repo.GetByID(ctx, ArticleID(rawArticle("alpha"))); err != nil {
		t.Fatalf("sibling article should have landed: %v", err)
	}
}

func TestRunBatchRetriesTransientOutages(t *testing.T) {
	f := newIngestionFixture(t, nil)
	f.ai.transientAt["delta"] = 2
	ctx := context.Background()

	report := f.svc.RunBatch(ctx, []domain.RawArticle{rawArticle("delta")})
	if report.Succeeded != 1 {
		t.Fatalf("two transient outages within three attempts must still succeed: %+v", report)
	}
}

func TestRunBatchSkipsUnchangedDuplicates(t *testing.T) {
	f := newIngestionFixture(t, nil)
	ctx := context.Background()
	raw := rawArticle("echo")

	first := f.svc.RunBatch(ctx, []domain.RawArticle{raw})
	if first.Succeeded != 1 || first.Skipped != 0 {
		t.Fatalf("first run: %+v", first)
	}
	analyzeAfterFirst, _ := f.ai.calls()

	second := f.svc.RunBatch(ctx, []domain.RawArticle{raw})
	if second.Succeeded != 1 || second.Skipped != 1 {
		t.Fatalf("unchanged duplicate should be skipped: %+v", second)
	}
	analyzeAfterSecond, _ := f.ai.calls()
	if analyzeAfterSecond != analyzeAfterFirst {
		t.Fatalf("skip must not re-enrich: %d -> %d", analyzeAfterFirst, analyzeAfterSecond)
	}

	// changed body, same URL: same ID, fresh enrichment
	raw.Body = raw.Body + " Updated."
	third := f.svc.RunBatch(ctx, []domain.RawArticle{raw})
	if third.Succeeded != 1 || third.Skipped != 0 {
		t.Fatalf("changed content must be re-ingested: %+v", third)
	}
}

func TestRunBatchClearsQueryAndUserCaches(t *testing.T) {
	f := newIngestionFixture(t, nil)
	ctx := context.Background()

	if err := f.store.Set(ctx, cache.NamespaceQuery, "stale", []byte("x"), 0); err != nil {
		t.Fatalf("seed query cache: %v", err)
	}
	if err := f.store.Set(ctx, cache.NamespaceUser, "u1:feed:1:20", []byte("x"), 0); err != nil {
		t.Fatalf("seed user cache: %v", err)
	}
	f.svc.RunBatch(ctx, []domain.RawArticle{rawArticle("foxtrot")})

	if _, hit, _ := f.store.Get(ctx, cache.NamespaceQuery, "stale"); hit {
		t.Fatalf("successful batch must clear the query namespace")
	}
	if _, hit, _ := f.store.Get(ctx, cache.NamespaceUser, "u1:feed:1:20"); hit {
		t.Fatalf("successful batch must clear cached feed pages")
	}
}

func TestRunCycleUsesFetcher(t *testing.T) {
	fetcher := &fakeFetcher{batch: []domain.RawArticle{rawArticle("golf"), rawArticle("hotel")}}
	f := newIngestionFixture(t, fetcher)
	ctx := context.Background()

	report, err := f.svc.RunCycle(ctx)
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if report.Total != 2 || report.Succeeded != 2 {
		t.Fatalf("unexpected cycle report: %+v", report)
	}
}

func TestRunCycleWithoutFetcher(t *testing.T) {
	f := newIngestionFixture(t, nil)
	if _, err := f.svc.RunCycle(context.Background()); err == nil {
		t.Fatalf("expected error when no source is configured")
	}
}

func TestArticleIDStability(t *testing.T) {
	a := rawArticle("india")
	b := rawArticle("india")
	if ArticleID(a) != ArticleID(b) {
		t.Fatalf("same source identity must map to the same id")
	}
	b.Body = "different body"
	if ArticleID(a) != ArticleID(b) {
		t.Fatalf("id must follow source identity, not content")
	}
	if ContentHash(a) == ContentHash(b) {
		t.Fatalf("content hash must follow content")
	}
	c := rawArticle("juliett")
	if ArticleID(a) == ArticleID(c) {
		t.Fatalf("different articles must not collide")
	}
}
