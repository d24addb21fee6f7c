package engagement

import (
	"context"
	"sync"
	"time"

	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
)

type memoryTracker struct {
	mu        sync.Mutex
	records   map[string]*domain.EngagementRecord
	expiry    map[string]time.Time
	weights   Weights
	retention time.Duration
	now       func() time.Time
}

// NewMemoryTracker backs the single-process mode and tests. Increment
// atomicity comes from the tracker mutex instead of HINCRBY.
func NewMemoryTracker(weights Weights, retention time.Duration) Tracker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &memoryTracker{
		records:   make(map[string]*domain.EngagementRecord),
		expiry:    make(map[string]time.Time),
		weights:   weights,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (t *memoryTracker) RecordEvent(_ context.Context, articleID string, action domain.EngagementAction) error {
	if err := validateEvent(articleID, action); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	rec := t.live(articleID, now)
	if rec == nil {
		rec = &domain.EngagementRecord{ArticleID: articleID}
		t.records[articleID] = rec
	}
	switch action {
	case domain.ActionLike:
		rec.Likes++
	case domain.ActionShare:
		rec.Shares++
	default:
		rec.Views++
	}
	rec.UpdatedAt = now
	t.expiry[articleID] = now.Add(t.retention)
	return nil
}

func (t *memoryTracker) live(articleID string, now time.Time) *domain.EngagementRecord {
	rec, ok := t.records[articleID]
	if !ok {
		return nil
	}
	if exp, ok := t.expiry[articleID]; ok && now.After(exp) {
		delete(t.records, articleID)
		delete(t.expiry, articleID)
		return nil
	}
	return rec
}

func (t *memoryTracker) Record(_ context.Context, articleID string) (*domain.EngagementRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.live(articleID, t.now())
	if rec == nil {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (t *memoryTracker) Score(ctx context.Context, articleID string) (float64, error) {
	rec, err := t.Record(ctx, articleID)
	if err != nil {
		return 0, err
	}
	return ScoreOf(rec, t.weights), nil
}

func (t *memoryTracker) ScoreMany(ctx context.Context, articleIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(articleIDs))
	for _, id := range articleIDs {
		score, err := t.Score(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = score
	}
	return out, nil
}
