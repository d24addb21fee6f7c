package services

import (
	"context"
	"testing"
	"time"

	"github.com/pulsefeed/pulsefeed-backend/internal/cache"
	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/article"
	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/testutil"
)

func TestNewPagination(t *testing.T) {
	cases := []struct {
		page, size int
		total      int64
		want       Pagination
	}{
		{1, 10, 0, Pagination{CurrentPage: 1, TotalPages: 0, HasNext: false, HasPrev: false}},
		{1, 10, 25, Pagination{CurrentPage: 1, TotalPages: 3, HasNext: true, HasPrev: false}},
		{2, 10, 25, Pagination{CurrentPage: 2, TotalPages: 3, HasNext: true, HasPrev: true}},
		{3, 10, 25, Pagination{CurrentPage: 3, TotalPages: 3, HasNext: false, HasPrev: true}},
		{0, 0, 25, Pagination{CurrentPage: 1, TotalPages: 2, HasNext: true, HasPrev: false}},
	}
	for _, tc := range cases {
		if got := NewPagination(tc.page, tc.size, tc.total); got != tc.want {
			t.Fatalf("page=%d size=%d total=%d: got %+v want %+v", tc.page, tc.size, tc.total, got, tc.want)
		}
	}
}

func TestGetByIDReadsThroughCache(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := article.NewRepo(tx, testutil.Logger(t), testutil.TestEmbeddingDim)
	store := cache.NewMemoryStore(cache.DefaultTTLPolicy())
	svc := NewArticleService(testutil.Logger(t), repo, store)
	ctx := context.Background()

	seeded := testutil.SeedArticle(t, tx, "c1", time.Now().UTC())

	first, err := svc.GetByID(ctx, "c1")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if first.ID != seeded.ID {
		t.Fatalf("unexpected article %q", first.ID)
	}

	// Row gone from the store, still served from cache.
	if err := tx.Delete(seeded).Error; err != nil {
		t.Fatalf("delete row: %v", err)
	}
	second, err := svc.GetByID(ctx, "c1")
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if second.ID != "c1" {
		t.Fatalf("expected cached article, got %q", second.ID)
	}

	// Invalidation forces the next read back to the store.
	if err := store.Invalidate(ctx, cache.NamespaceRequest, "c1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := svc.GetByID(ctx, "c1"); err == nil {
		t.Fatalf("expected miss after invalidation of a deleted row")
	}
}

func TestListCachesPageAndMeta(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := article.NewRepo(tx, testutil.Logger(t), testutil.TestEmbeddingDim)
	store := cache.NewMemoryStore(cache.DefaultTTLPolicy())
	svc := NewArticleService(testutil.Logger(t), repo, store)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		testutil.SeedArticle(t, tx, []string{"l1", "l2", "l3"}[i], now.Add(-time.Duration(i)*time.Hour))
	}

	page, err := svc.List(ctx, article.QueryParams{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 {
		t.Fatalf("unexpected page: total=%d items=%d", page.Total, len(page.Items))
	}
	if page.Pagination != (Pagination{CurrentPage: 1, TotalPages: 2, HasNext: true, HasPrev: false}) {
		t.Fatalf("unexpected pagination meta: %+v", page.Pagination)
	}

	// New row is invisible until the query namespace is cleared.
	testutil.SeedArticle(t, tx, "l4", now.Add(time.Hour))
	cached, err := svc.List(ctx, article.QueryParams{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("cached list: %v", err)
	}
	if cached.Total != 3 {
		t.Fatalf("expected cached total 3, got %d", cached.Total)
	}

	if _, err := store.ClearNamespace(ctx, cache.NamespaceQuery); err != nil {
		t.Fatalf("clear namespace: %v", err)
	}
	refreshed, err := svc.List(ctx, article.QueryParams{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("refreshed list: %v", err)
	}
	if refreshed.Total != 4 {
		t.Fatalf("expected total 4 after invalidation, got %d", refreshed.Total)
	}
}
