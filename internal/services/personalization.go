package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulsefeed/pulsefeed-backend/internal/cache"
	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/article"
	"github.com/pulsefeed/pulsefeed-backend/internal/data/repos/user"
	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	"github.com/pulsefeed/pulsefeed-backend/internal/engagement"
	"github.com/pulsefeed/pulsefeed-backend/internal/pkg/ctxutil"
	pkgerrors "github.com/pulsefeed/pulsefeed-backend/internal/pkg/errors"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
	"github.com/pulsefeed/pulsefeed-backend/internal/viewed"
)

// PersonalizationState describes how far a user is through onboarding.
type PersonalizationState string

const (
	StateUninitialized    PersonalizationState = "uninitialized"
	StateNeedsPreferences PersonalizationState = "needs_preferences"
	StatePersonalized     PersonalizationState = "personalized"
)

type PersonalizationConfig struct {
	MaxTopics            int
	PreferencesRetention time.Duration
	DefaultPageSize      int
}

func DefaultPersonalizationConfig() PersonalizationConfig {
	return PersonalizationConfig{
		MaxTopics:            10,
		PreferencesRetention: 30 * 24 * time.Hour,
		DefaultPageSize:      20,
	}
}

// PreferencesInput is the client-supplied preference set, validated before it
// replaces whatever is stored.
type PreferencesInput struct {
	Topics    []string          `json:"topics"`
	Sources   []string          `json:"sources"`
	Sentiment *domain.Sentiment `json:"sentiment"`
}

type PersonalizationService interface {
	NewUser() uuid.UUID
	State(ctx context.Context, userID uuid.UUID) (PersonalizationState, error)
	GetPreferences(ctx context.Context, userID uuid.UUID) (*domain.UserPreferences, error)
	SetPreferences(ctx context.Context, userID uuid.UUID, in PreferencesInput) (*domain.UserPreferences, error)
	ClearPreferences(ctx context.Context, userID uuid.UUID) error
	Feed(ctx context.Context, userID uuid.UUID, page, pageSize int) (*ArticlePage, error)
	Search(ctx context.Context, userID uuid.UUID, text string, page, pageSize int) (*ArticlePage, error)
	RecordView(ctx context.Context, userID uuid.UUID, articleID string) error
}

type personalizationService struct {
	log      *logger.Logger
	prefs    user.PreferencesRepo
	articles ArticleService
	trending TrendingService
	views    viewed.Set
	tracker  engagement.Tracker
	store    cache.Store
	cfg      PersonalizationConfig
	now      func() time.Time
}

func NewPersonalizationService(
	baseLog *logger.Logger,
	prefs user.PreferencesRepo,
	articles ArticleService,
	trending TrendingService,
	views viewed.Set,
	tracker engagement.Tracker,
	store cache.Store,
	cfg PersonalizationConfig,
) PersonalizationService {
	def := DefaultPersonalizationConfig()
	if cfg.MaxTopics <= 0 {
		cfg.MaxTopics = def.MaxTopics
	}
	if cfg.PreferencesRetention <= 0 {
		cfg.PreferencesRetention = def.PreferencesRetention
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = def.DefaultPageSize
	}
	return &personalizationService{
		log:      baseLog.With("service", "PersonalizationService"),
		prefs:    prefs,
		articles: articles,
		trending: trending,
		views:    views,
		tracker:  tracker,
		store:    store,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *personalizationService) NewUser() uuid.UUID {
	return uuid.New()
}

// State: no stored row means the user never onboarded; an expired or empty
// row means they must (re)submit preferences; anything else is personalized.
func (s *personalizationService) State(ctx context.Context, userID uuid.UUID) (PersonalizationState, error) {
	row, err := s.prefs.GetByUserID(ctxutil.Default(ctx), userID)
	if err != nil {
		return StateUninitialized, err
	}
	if row == nil {
		return StateUninitialized, nil
	}
	if row.Empty() || row.ExpiredAt(s.now().UTC(), s.cfg.PreferencesRetention) {
		return StateNeedsPreferences, nil
	}
	return StatePersonalized, nil
}

func (s *personalizationService) GetPreferences(ctx context.Context, userID uuid.UUID) (*domain.UserPreferences, error) {
	row, err := s.prefs.GetByUserID(ctxutil.Default(ctx), userID)
	if err != nil {
		return nil, err
	}
	if row == nil || row.ExpiredAt(s.now().UTC(), s.cfg.PreferencesRetention) {
		return nil, pkgerrors.ErrNotFound
	}
	return row, nil
}

func (s *personalizationService) SetPreferences(ctx context.Context, userID uuid.UUID, in PreferencesInput) (*domain.UserPreferences, error) {
	ctx = ctxutil.Default(ctx)
	if userID == uuid.Nil {
		return nil, pkgerrors.Validation("user_id", "required")
	}

	topics := normalizeLabels(in.Topics)
	if len(topics) > s.cfg.MaxTopics {
		return nil, pkgerrors.Validation("topics", fmt.Sprintf("at most %d topics allowed", s.cfg.MaxTopics))
	}
	sources := normalizeLabels(in.Sources)
	if in.Sentiment != nil && !domain.ValidSentiment(*in.Sentiment) {
		return nil, pkgerrors.Validation("sentiment", fmt.Sprintf("unknown value %q", *in.Sentiment))
	}

	row := &domain.UserPreferences{
		UserID:    userID,
		Topics:    topics,
		Sources:   sources,
		Sentiment: in.Sentiment,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.prefs.Upsert(ctx, row); err != nil {
		return nil, err
	}
	s.clearUserCache(ctx, userID)
	return row, nil
}

func (s *personalizationService) ClearPreferences(ctx context.Context, userID uuid.UUID) error {
	ctx = ctxutil.Default(ctx)
	if err := s.prefs.Delete(ctx, userID); err != nil {
		return err
	}
	s.clearUserCache(ctx, userID)
	return nil
}

// Feed serves the preference-filtered corpus minus everything the user has
// already seen. When the user follows no topics the global trending ranking
// stands in for the topic filter.
func (s *personalizationService) Feed(ctx context.Context, userID uuid.UUID, page, pageSize int) (*ArticlePage, error) {
	ctx = ctxutil.Default(ctx)
	prefs, err := s.requirePersonalized(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pageSize < 1 {
		pageSize = s.cfg.DefaultPageSize
	}
	if page < 1 {
		page = 1
	}

	cacheKey := fmt.Sprintf("%s:feed:%d:%d", userID, page, pageSize)
	if cached := s.cachedPage(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	seen, err := s.views.Members(ctx, userID)
	if err != nil {
		s.log.Warn("viewed set read failed, serving unfiltered feed", "user_id", userID, "error", err)
		seen = nil
	}

	var result *ArticlePage
	if len(prefs.Topics) == 0 {
		result, err = s.trendingPage(ctx, seen, page, pageSize)
	} else {
		result, err = s.articles.List(ctx, article.QueryParams{
			Topics:     prefs.Topics,
			Sources:    prefs.Sources,
			Sentiments: sentimentFilter(prefs.Sentiment),
			ExcludeIDs: seen,
			Page:       page,
			PageSize:   pageSize,
		})
	}
	if err != nil {
		return nil, err
	}
	s.cachePage(ctx, cacheKey, result)
	return result, nil
}

func (s *personalizationService) Search(ctx context.Context, userID uuid.UUID, text string, page, pageSize int) (*ArticlePage, error) {
	ctx = ctxutil.Default(ctx)
	prefs, err := s.requirePersonalized(ctx, userID)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, pkgerrors.Validation("q", "required")
	}
	if pageSize < 1 {
		pageSize = s.cfg.DefaultPageSize
	}
	if page < 1 {
		page = 1
	}

	sum := sha256.Sum256([]byte(text))
	cacheKey := fmt.Sprintf("%s:search:%s:%d:%d", userID, hex.EncodeToString(sum[:8]), page, pageSize)
	if cached := s.cachedPage(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	seen, err := s.views.Members(ctx, userID)
	if err != nil {
		s.log.Warn("viewed set read failed, serving unfiltered search", "user_id", userID, "error", err)
		seen = nil
	}

	result, err := s.articles.List(ctx, article.QueryParams{
		Text:       text,
		Topics:     prefs.Topics,
		Sources:    prefs.Sources,
		Sentiments: sentimentFilter(prefs.Sentiment),
		ExcludeIDs: seen,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		return nil, err
	}
	s.cachePage(ctx, cacheKey, result)
	return result, nil
}

// RecordView is idempotent: re-viewing neither grows the viewed set nor
// fails. Every call still counts one view toward engagement and drops the
// user's cached pages.
func (s *personalizationService) RecordView(ctx context.Context, userID uuid.UUID, articleID string) error {
	ctx = ctxutil.Default(ctx)
	if userID == uuid.Nil {
		return pkgerrors.Validation("user_id", "required")
	}
	if _, err := s.articles.GetByID(ctx, articleID); err != nil {
		return err
	}
	if err := s.views.Add(ctx, userID, articleID); err != nil {
		return err
	}
	if err := s.tracker.RecordEvent(ctx, articleID, domain.ActionView); err != nil {
		s.log.Warn("engagement record failed for view", "article_id", articleID, "error", err)
	}
	s.clearUserCache(ctx, userID)
	return nil
}

func (s *personalizationService) requirePersonalized(ctx context.Context, userID uuid.UUID) (*domain.UserPreferences, error) {
	row, err := s.prefs.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if row == nil || row.Empty() || row.ExpiredAt(s.now().UTC(), s.cfg.PreferencesRetention) {
		return nil, pkgerrors.ErrPreferencesRequired
	}
	return row, nil
}

// trendingPage pages through the trending snapshot after dropping viewed
// articles, then hydrates the slice that remains.
func (s *personalizationService) trendingPage(ctx context.Context, seen []string, page, pageSize int) (*ArticlePage, error) {
	entries := s.trending.Top(ctx, 0)
	seenSet := make(map[string]struct{}, len(seen))
	for _, id := range seen {
		seenSet[id] = struct{}{}
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seenSet[e.ArticleID]; ok {
			continue
		}
		ids = append(ids, e.ArticleID)
	}

	total := int64(len(ids))
	start := (page - 1) * pageSize
	if start > len(ids) {
		start = len(ids)
	}
	end := start + pageSize
	if end > len(ids) {
		end = len(ids)
	}

	items := []*domain.Article{}
	if start < end {
		rows, err := s.articles.GetByIDs(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		byID := make(map[string]*domain.Article, len(rows))
		for _, row := range rows {
			byID[row.ID] = row
		}
		for _, id := range ids[start:end] {
			if row, ok := byID[id]; ok {
				items = append(items, row)
			}
		}
	}

	return &ArticlePage{
		Items:      items,
		Total:      total,
		Pagination: NewPagination(page, pageSize, total),
	}, nil
}

func (s *personalizationService) cachedPage(ctx context.Context, key string) *ArticlePage {
	payload, hit, err := s.store.Get(ctx, cache.NamespaceUser, key)
	if err != nil || !hit {
		return nil
	}
	var page ArticlePage
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil
	}
	return &page
}

func (s *personalizationService) cachePage(ctx context.Context, key string, page *ArticlePage) {
	payload, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, cache.NamespaceUser, key, payload, 0); err != nil {
		s.log.Warn("user cache set failed", "key", key, "error", err)
	}
}

func (s *personalizationService) clearUserCache(ctx context.Context, userID uuid.UUID) {
	if _, err := s.store.ClearPrefix(ctx, cache.NamespaceUser, userID.String()+":"); err != nil {
		s.log.Warn("user cache clear failed", "user_id", userID, "error", err)
	}
}

func normalizeLabels(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func sentimentFilter(s *domain.Sentiment) []domain.Sentiment {
	if s == nil {
		return nil
	}
	return []domain.Sentiment{*s}
}
