package article

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/testutil"
	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	pkgerrors "github.com/pulsefeed/pulsefeed-backend/internal/pkg/errors"
)

func newTestRepo(t *testing.T) (Repo, context.Context) {
	t.Helper()
	tx := testutil.Tx(t, testutil.DB(t))
	return NewRepo(tx, testutil.Logger(t), testutil.TestEmbeddingDim), context.Background()
}

func TestPutRejectsInvalidRows(t *testing.T) {
	repo, ctx := newTestRepo(t)
	now := time.Now().UTC()

	cases := []struct {
		name string
		row  *domain.Article
	}{
		{"missing id", &domain.Article{Title: "t", Body: "b", Source: "s", PublishedAt: now, Sentiment: domain.SentimentNeutral, Embedding: testutil.Embedding(1)}},
		{"missing title", &domain.Article{ID: "a", Body: "b", Source: "s", PublishedAt: now, Sentiment: domain.SentimentNeutral, Embedding: testutil.Embedding(1)}},
		{"bad sentiment", &domain.Article{ID: "a", Title: "t", Body: "b", Source: "s", PublishedAt: now, Sentiment: "excited", Embedding: testutil.Embedding(1)}},
		{"bad embedding dim", &domain.Article{ID: "a", Title: "t", Body: "b", Source: "s", PublishedAt: now, Sentiment: domain.SentimentNeutral, Embedding: []float32{1, 2}}},
	}
	for _, tc := range cases {
		if err := repo.Put(ctx, tc.row); !pkgerrors.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestPutIsIdempotentByID(t *testing.T) {
	repo, ctx := newTestRepo(t)
	now := time.Now().UTC()

	row := &domain.Article{
		ID: "a1", Title: "first", Body: "body", Source: "wire",
		PublishedAt: now, Sentiment: domain.SentimentNeutral,
		Topic: "tech", Embedding: testutil.Embedding(1),
	}
	if err := repo.Put(ctx, row); err != nil {
		t.Fatalf("first put: %v", err)
	}

	row.Title = "updated"
	if err := repo.Put(ctx, row); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, err := repo.GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "updated" {
		t.Fatalf("expected overwrite, got title %q", got.Title)
	}
	total, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 row after re-put, got %d", total)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo, ctx := newTestRepo(t)
	if _, err := repo.GetByID(ctx, "nope"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryFiltersCompose(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := NewRepo(tx, testutil.Logger(t), testutil.TestEmbeddingDim)
	ctx := context.Background()
	now := time.Now().UTC()

	a := testutil.SeedArticle(t, tx, "q1", now.Add(-1*time.Hour))
	b := testutil.SeedArticle(t, tx, "q2", now.Add(-2*time.Hour))
	c := testutil.SeedArticle(t, tx, "q3", now.Add(-3*time.Hour))
	if err := tx.Model(b).Updates(map[string]any{"topic": "finance", "sentiment": domain.SentimentPositive}).Error; err != nil {
		t.Fatalf("update seed: %v", err)
	}
	_ = a
	_ = c

	rows, total, err := repo.Query(ctx, QueryParams{Topics: []string{"technology"}})
	if err != nil {
		t.Fatalf("topic query: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("expected 2 technology rows, got total=%d len=%d", total, len(rows))
	}
	// publish-desc ordering
	if rows[0].ID != "q1" || rows[1].ID != "q3" {
		t.Fatalf("unexpected order: %s, %s", rows[0].ID, rows[1].ID)
	}

	rows, total, err = repo.Query(ctx, QueryParams{
		Topics:     []string{"technology"},
		ExcludeIDs: []string{"q1"},
	})
	if err != nil {
		t.Fatalf("exclude query: %v", err)
	}
	if total != 1 || rows[0].ID != "q3" {
		t.Fatalf("exclusion not applied: total=%d", total)
	}

	rows, total, err = repo.Query(ctx, QueryParams{Sentiments: []domain.Sentiment{domain.SentimentPositive}})
	if err != nil {
		t.Fatalf("sentiment query: %v", err)
	}
	if total != 1 || rows[0].ID != "q2" {
		t.Fatalf("sentiment filter not applied: total=%d", total)
	}
}

func TestQueryTextSearchIsCaseInsensitive(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := NewRepo(tx, testutil.Logger(t), testutil.TestEmbeddingDim)
	ctx := context.Background()
	now := time.Now().UTC()

	row := testutil.SeedArticle(t, tx, "s1", now)
	if err := tx.Model(row).Update("title", "Quantum Breakthrough Announced").Error; err != nil {
		t.Fatalf("update title: %v", err)
	}
	testutil.SeedArticle(t, tx, "s2", now)

	rows, total, err := repo.Query(ctx, QueryParams{Text: "qUaNtUm"})
	if err != nil {
		t.Fatalf("text query: %v", err)
	}
	if total != 1 || rows[0].ID != "s1" {
		t.Fatalf("expected 1 match for text query, got total=%d", total)
	}
}

func TestQueryPagination(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := NewRepo(tx, testutil.Logger(t), testutil.TestEmbeddingDim)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		testutil.SeedArticle(t, tx, string(rune('a'+i))+"-page", now.Add(-time.Duration(i)*time.Hour))
	}

	rows, total, err := repo.Query(ctx, QueryParams{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("page query: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows on page 2, got %d", len(rows))
	}
	if rows[0].ID != "c-page" {
		t.Fatalf("unexpected first row on page 2: %s", rows[0].ID)
	}
}
