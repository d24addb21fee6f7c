package scheduler

import (
	"context"
	"time"

	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
	"github.com/pulsefeed/pulsefeed-backend/internal/services"
)

type Config struct {
	IngestEvery   time.Duration
	TrendingEvery time.Duration
}

func DefaultConfig() Config {
	return Config{
		IngestEvery:   15 * time.Minute,
		TrendingEvery: 5 * time.Minute,
	}
}

// Scheduler owns all periodic triggers; the services it drives hold no
// timing logic of their own.
type Scheduler struct {
	log       *logger.Logger
	ingestion services.IngestionService
	trending  services.TrendingService
	cfg       Config
}

func New(baseLog *logger.Logger, ingestion services.IngestionService, trending services.TrendingService, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.IngestEvery <= 0 {
		cfg.IngestEvery = def.IngestEvery
	}
	if cfg.TrendingEvery <= 0 {
		cfg.TrendingEvery = def.TrendingEvery
	}
	return &Scheduler{
		log:       baseLog.With("service", "Scheduler"),
		ingestion: ingestion,
		trending:  trending,
		cfg:       cfg,
	}
}

// Run blocks until ctx is cancelled. Each cycle is independent; a failed one
// is logged and the next tick starts clean.
func (s *Scheduler) Run(ctx context.Context) {
	ingestTicker := time.NewTicker(s.cfg.IngestEvery)
	defer ingestTicker.Stop()
	trendingTicker := time.NewTicker(s.cfg.TrendingEvery)
	defer trendingTicker.Stop()

	s.log.Info("scheduler started",
		"ingest_every", s.cfg.IngestEvery,
		"trending_every", s.cfg.TrendingEvery)

	// Prime the ranking so the trending endpoint is useful before the first tick.
	if err := s.trending.Refresh(ctx); err != nil {
		s.log.Warn("initial trending refresh failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ingestTicker.C:
			if report, err := s.ingestion.RunCycle(ctx); err != nil {
				s.log.Warn("ingest cycle failed", "error", err)
			} else {
				s.log.Debug("ingest cycle done", "succeeded", report.Succeeded, "failed", report.Failed)
			}
		case <-trendingTicker.C:
			if err := s.trending.Refresh(ctx); err != nil {
				s.log.Warn("scheduled trending refresh failed", "error", err)
			}
		}
	}
}
