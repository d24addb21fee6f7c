package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pulsefeed/pulsefeed-backend/internal/cache"
	redisclient "github.com/pulsefeed/pulsefeed-backend/internal/clients/redis"
	"github.com/pulsefeed/pulsefeed-backend/internal/engagement"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/ai"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/vector"
	"github.com/pulsefeed/pulsefeed-backend/internal/services"
	"github.com/pulsefeed/pulsefeed-backend/internal/source"
	"github.com/pulsefeed/pulsefeed-backend/internal/viewed"
)

type State struct {
	Redis   *goredis.Client
	Cache   cache.Store
	Tracker engagement.Tracker
	Viewed  viewed.Set
	Vectors vector.Store
}

type Services struct {
	Article         services.ArticleService
	Similarity      services.SimilarityService
	Trending        services.TrendingService
	Personalization services.PersonalizationService
	Ingestion       services.IngestionService
}

func wireState(log *logger.Logger, cfg Config) (State, error) {
	log.Info("Wiring state providers...",
		"state_provider", cfg.StateProvider,
		"vector_provider", cfg.VectorProvider)

	var st State
	switch cfg.StateProvider {
	case StateProviderRedis:
		rdb, err := redisclient.New(log)
		if err != nil {
			return State{}, fmt.Errorf("init redis: %w", err)
		}
		st.Redis = rdb
		st.Cache = cache.NewRedisStore(log, rdb, cfg.CacheTTL)
		st.Tracker = engagement.NewRedisTracker(log, rdb, cfg.Weights, cfg.EngagementRetention)
		st.Viewed = viewed.NewRedisSet(log, rdb, cfg.ViewedRetention)
	case StateProviderMemory:
		st.Cache = cache.NewMemoryStore(cfg.CacheTTL)
		st.Tracker = engagement.NewMemoryTracker(cfg.Weights, cfg.EngagementRetention)
		st.Viewed = viewed.NewMemorySet(cfg.ViewedRetention)
	}

	switch cfg.VectorProvider {
	case VectorProviderQdrant:
		qcfg, err := vector.ResolveQdrantConfigFromEnv()
		if err != nil {
			return State{}, fmt.Errorf("qdrant config: %w", err)
		}
		store, err := vector.NewQdrantStore(log, qcfg)
		if err != nil {
			return State{}, fmt.Errorf("init qdrant: %w", err)
		}
		st.Vectors = store
	case VectorProviderMemory:
		st.Vectors = vector.NewMemoryStore(cfg.EmbeddingDim)
	}
	return st, nil
}

func wireServices(log *logger.Logger, cfg Config, repos Repos, st State) (Services, error) {
	log.Info("Wiring services...")

	enricher, err := ai.NewClient(log)
	if err != nil {
		return Services{}, fmt.Errorf("init ai client: %w", err)
	}

	var fetcher source.Fetcher
	if cfg.SourceEnabled {
		fetcher, err = source.NewHTTPFetcher(log)
		if err != nil {
			return Services{}, fmt.Errorf("init source fetcher: %w", err)
		}
	}

	articleSvc := services.NewArticleService(log, repos.Article, st.Cache)
	trendingSvc := services.NewTrendingService(log, repos.Article, st.Tracker, cfg.Weights, cfg.Trending)
	similaritySvc := services.NewSimilarityService(log, repos.Article, st.Vectors, st.Cache)
	personalizationSvc := services.NewPersonalizationService(
		log, repos.Preferences, articleSvc, trendingSvc, st.Viewed, st.Tracker, st.Cache, cfg.Personalization)
	ingestionSvc := services.NewIngestionService(
		log, repos.Article, st.Vectors, enricher, st.Cache, trendingSvc, fetcher, cfg.Ingestion)

	return Services{
		Article:         articleSvc,
		Similarity:      similaritySvc,
		Trending:        trendingSvc,
		Personalization: personalizationSvc,
		Ingestion:       ingestionSvc,
	}, nil
}
