package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/article"
	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/testutil"
	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	pkgerrors "github.com/pulsefeed/pulsefeed-backend/internal/pkg/errors"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/ai"
)

// failingArticleRepo delegates until tripped, then fails everything.
type failingArticleRepo struct {
	article.Repo
	mu      sync.Mutex
	tripped bool
}

func (r *failingArticleRepo) trip() {
	r.mu.Lock()
	r.tripped = true
	r.mu.Unlock()
}

func (r *failingArticleRepo) failed() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tripped {
		return fmt.Errorf("%w: forced failure", pkgerrors.ErrStoreUnavailable)
	}
	return nil
}

func (r *failingArticleRepo) ListPublishedSince(ctx context.Context, since time.Time) ([]*domain.Article, error) {
	if err := r.failed(); err != nil {
		return nil, err
	}
	return r.Repo.ListPublishedSince(ctx, since)
}

// fakeAIClient derives deterministic enrichment from the input text. Titles
// registered in failTitles exhaust their retries with a provider outage.
type fakeAIClient struct {
	mu          sync.Mutex
	analyzeCnt  int
	embedCnt    int
	failTitles  map[string]bool
	transientAt map[string]int
}

func newFakeAIClient() *fakeAIClient {
	return &fakeAIClient{
		failTitles:  make(map[string]bool),
		transientAt: make(map[string]int),
	}
}

func (f *fakeAIClient) Analyze(_ context.Context, text string) (*ai.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzeCnt++
	for title := range f.failTitles {
		if len(text) >= len(title) && text[:len(title)] == title {
			return nil, fmt.Errorf("%w: provider down", pkgerrors.ErrEnrichmentUnavailable)
		}
	}
	for title, remaining := range f.transientAt {
		if remaining > 0 && len(text) >= len(title) && text[:len(title)] == title {
			f.transientAt[title] = remaining - 1
			return nil, fmt.Errorf("%w: transient", pkgerrors.ErrEnrichmentUnavailable)
		}
	}
	return &ai.Analysis{
		Summary:   "summary of " + text[:min(len(text), 24)],
		Sentiment: domain.SentimentNeutral,
		Keywords:  []string{"k1", "k2"},
		Topics:    []string{"technology", "ai"},
	}, nil
}

func (f *fakeAIClient) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	f.mu.Lock()
	f.embedCnt++
	f.mu.Unlock()
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		vec := make([]float32, testutil.TestEmbeddingDim)
		for j := range vec {
			vec[j] = float32((len(in)+i+j)%7) + 0.5
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeAIClient) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analyzeCnt, f.embedCnt
}

type fakeFetcher struct {
	batch []domain.RawArticle
	err   error
}

func (f *fakeFetcher) Fetch(context.Context) ([]domain.RawArticle, error) {
	return f.batch, f.err
}
