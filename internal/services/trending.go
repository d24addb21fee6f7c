package services

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/article"
	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	"github.com/pulsefeed/pulsefeed-backend/internal/engagement"
	"github.com/pulsefeed/pulsefeed-backend/internal/pkg/ctxutil"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
)

// TrendingConfig is ranking policy, resolved once at wiring time.
type TrendingConfig struct {
	HalfLife time.Duration
	Window   time.Duration
	Limit    int
}

func DefaultTrendingConfig() TrendingConfig {
	return TrendingConfig{
		HalfLife: 24 * time.Hour,
		Window:   7 * 24 * time.Hour,
		Limit:    100,
	}
}

type TrendingService interface {
	// Refresh rebuilds the ranking from scratch and swaps it in atomically.
	// A refresh that overlaps one already in flight is coalesced to a no-op.
	Refresh(ctx context.Context) error
	// Top returns up to n entries from the current snapshot. Before the first
	// successful rebuild the snapshot is empty.
	Top(ctx context.Context, n int) []domain.TrendingEntry
	LastBuiltAt() time.Time
}

type trendingSnapshot struct {
	entries []domain.TrendingEntry
	builtAt time.Time
}

type trendingService struct {
	log      *logger.Logger
	articles article.Repo
	tracker  engagement.Tracker
	weights  engagement.Weights
	cfg      TrendingConfig

	refreshMu sync.Mutex
	snapshot  atomic.Pointer[trendingSnapshot]
	now       func() time.Time
}

func NewTrendingService(baseLog *logger.Logger, articles article.Repo, tracker engagement.Tracker, weights engagement.Weights, cfg TrendingConfig) TrendingService {
	if cfg.HalfLife <= 0 {
		cfg.HalfLife = DefaultTrendingConfig().HalfLife
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultTrendingConfig().Window
	}
	return &trendingService{
		log:      baseLog.With("service", "TrendingService"),
		articles: articles,
		tracker:  tracker,
		weights:  weights,
		cfg:      cfg,
		now:      time.Now,
	}
}

// DecayFactor halves once per halfLife of age. Future publish timestamps are
// clamped so clock skew cannot inflate a score above its engagement value.
func DecayFactor(age, halfLife time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	return math.Exp(-math.Ln2 * age.Seconds() / halfLife.Seconds())
}

func (s *trendingService) Refresh(ctx context.Context) error {
	if !s.refreshMu.TryLock() {
		s.log.Debug("trending refresh already in flight, coalescing")
		return nil
	}
	defer s.refreshMu.Unlock()

	ctx = ctxutil.Default(ctx)
	now := s.now().UTC()

	rows, err := s.articles.ListPublishedSince(ctx, now.Add(-s.cfg.Window))
	if err != nil {
		s.log.Error("trending rebuild failed, keeping prior snapshot", "error", err)
		return err
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	scores, err := s.tracker.ScoreMany(ctx, ids)
	if err != nil {
		s.log.Error("trending rebuild failed, keeping prior snapshot", "error", err)
		return err
	}

	entries := make([]domain.TrendingEntry, 0, len(rows))
	for _, row := range rows {
		eng, ok := scores[row.ID]
		if !ok {
			eng = engagement.ColdStartScore
		}
		entries = append(entries, domain.TrendingEntry{
			ArticleID:   row.ID,
			Score:       DecayFactor(now.Sub(row.PublishedAt), s.cfg.HalfLife) * eng,
			PublishedAt: row.PublishedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].PublishedAt.Equal(entries[j].PublishedAt) {
			return entries[i].PublishedAt.After(entries[j].PublishedAt)
		}
		return entries[i].ArticleID < entries[j].ArticleID
	})
	if s.cfg.Limit > 0 && len(entries) > s.cfg.Limit {
		entries = entries[:s.cfg.Limit]
	}

	s.snapshot.Store(&trendingSnapshot{entries: entries, builtAt: now})
	s.log.Info("trending snapshot rebuilt", "entries", len(entries))
	return nil
}

func (s *trendingService) Top(_ context.Context, n int) []domain.TrendingEntry {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil
	}
	if n <= 0 || n > len(snap.entries) {
		n = len(snap.entries)
	}
	out := make([]domain.TrendingEntry, n)
	copy(out, snap.entries[:n])
	return out
}

func (s *trendingService) LastBuiltAt() time.Time {
	snap := s.snapshot.Load()
	if snap == nil {
		return time.Time{}
	}
	return snap.builtAt
}
