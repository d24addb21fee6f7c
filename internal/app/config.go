package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pulsefeed/pulsefeed-backend/internal/cache"
	"github.com/pulsefeed/pulsefeed-backend/internal/engagement"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/envutil"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
	"github.com/pulsefeed/pulsefeed-backend/internal/scheduler"
	"github.com/pulsefeed/pulsefeed-backend/internal/services"
	"github.com/pulsefeed/pulsefeed-backend/internal/viewed"
)

type Config struct {
	Port         string
	AllowOrigins []string
	EmbeddingDim int

	StateProvider  StateProvider
	VectorProvider VectorProvider

	Weights             engagement.Weights
	EngagementRetention time.Duration
	ViewedRetention     time.Duration

	Trending        services.TrendingConfig
	Personalization services.PersonalizationConfig
	Ingestion       services.IngestionConfig
	CacheTTL        cache.TTLPolicy

	SchedulerEnabled bool
	Scheduler        scheduler.Config
	SourceEnabled    bool
}

// rankingFile is the optional YAML overlay for ranking policy. Env wins over
// file, file wins over defaults.
type rankingFile struct {
	HalfLife  string `yaml:"half_life"`
	Window    string `yaml:"window"`
	Limit     int    `yaml:"limit"`
	MaxTopics int    `yaml:"max_topics"`
	Weights   struct {
		View  float64 `yaml:"view"`
		Like  float64 `yaml:"like"`
		Share float64 `yaml:"share"`
	} `yaml:"weights"`
	TTL map[string]string `yaml:"ttl"`
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port:                envutil.String("PORT", "8080"),
		EmbeddingDim:        envutil.Int("EMBEDDING_DIM", 768),
		Weights:             engagement.DefaultWeights(),
		EngagementRetention: envutil.Duration("ENGAGEMENT_RETENTION", engagement.DefaultRetention),
		ViewedRetention:     envutil.Duration("VIEWED_RETENTION", viewed.DefaultRetention),
		Trending:            services.DefaultTrendingConfig(),
		Personalization:     services.DefaultPersonalizationConfig(),
		Ingestion:           services.DefaultIngestionConfig(),
		CacheTTL:            cache.DefaultTTLPolicy(),
		SchedulerEnabled:    envutil.Bool("SCHEDULER_ENABLED", true),
		Scheduler: scheduler.Config{
			IngestEvery:   envutil.Duration("INGEST_EVERY", 15*time.Minute),
			TrendingEvery: envutil.Duration("TRENDING_EVERY", 5*time.Minute),
		},
		SourceEnabled: envutil.String("SOURCE_FEED_URL", "") != "",
	}
	if origins := envutil.String("CORS_ALLOW_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowOrigins = append(cfg.AllowOrigins, o)
			}
		}
	}

	if path := envutil.String("RANKING_CONFIG_PATH", ""); path != "" {
		if err := applyRankingFile(&cfg, path); err != nil {
			return Config{}, err
		}
		log.Info("ranking policy loaded", "path", path)
	}

	cfg.Trending.HalfLife = envutil.Duration("TRENDING_HALF_LIFE", cfg.Trending.HalfLife)
	cfg.Trending.Window = envutil.Duration("TRENDING_WINDOW", cfg.Trending.Window)
	cfg.Trending.Limit = envutil.Int("TRENDING_LIMIT", cfg.Trending.Limit)
	cfg.Personalization.MaxTopics = envutil.Int("MAX_TOPICS", cfg.Personalization.MaxTopics)
	cfg.Personalization.PreferencesRetention = envutil.Duration("PREFERENCES_RETENTION", cfg.Personalization.PreferencesRetention)
	cfg.Ingestion.Concurrency = envutil.Int("INGEST_CONCURRENCY", cfg.Ingestion.Concurrency)
	cfg.Ingestion.MaxAttempts = envutil.Int("INGEST_MAX_ATTEMPTS", cfg.Ingestion.MaxAttempts)

	var err error
	cfg.StateProvider, err = resolveStateProvider()
	if err != nil {
		return Config{}, err
	}
	cfg.VectorProvider, err = resolveVectorProvider()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyRankingFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read ranking config: %w", err)
	}
	var rf rankingFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return fmt.Errorf("parse ranking config: %w", err)
	}

	if rf.HalfLife != "" {
		d, err := time.ParseDuration(rf.HalfLife)
		if err != nil {
			return fmt.Errorf("ranking config half_life: %w", err)
		}
		cfg.Trending.HalfLife = d
	}
	if rf.Window != "" {
		d, err := time.ParseDuration(rf.Window)
		if err != nil {
			return fmt.Errorf("ranking config window: %w", err)
		}
		cfg.Trending.Window = d
	}
	if rf.Limit > 0 {
		cfg.Trending.Limit = rf.Limit
	}
	if rf.MaxTopics > 0 {
		cfg.Personalization.MaxTopics = rf.MaxTopics
	}
	if rf.Weights.View > 0 || rf.Weights.Like > 0 || rf.Weights.Share > 0 {
		cfg.Weights = engagement.Weights{
			View:  rf.Weights.View,
			Like:  rf.Weights.Like,
			Share: rf.Weights.Share,
		}
	}
	for name, val := range rf.TTL {
		ns := cache.Namespace(name)
		if !cache.ValidNamespace(ns) {
			return fmt.Errorf("ranking config ttl: unknown namespace %q", name)
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("ranking config ttl %q: %w", name, err)
		}
		cfg.CacheTTL[ns] = d
	}
	return nil
}
