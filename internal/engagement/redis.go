package engagement

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pulsefeed/pulsefeed-backend/internal/domain"
	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
)

const keyPrefix = "pf:engage:"

const (
	fieldViews     = "views"
	fieldLikes     = "likes"
	fieldShares    = "shares"
	fieldUpdatedAt = "updated_at"
)

type redisTracker struct {
	log       *logger.Logger
	rdb       *goredis.Client
	weights   Weights
	retention time.Duration
}

func NewRedisTracker(baseLog *logger.Logger, rdb *goredis.Client, weights Weights, retention time.Duration) Tracker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &redisTracker{
		log:       baseLog.With("service", "EngagementTracker"),
		rdb:       rdb,
		weights:   weights,
		retention: retention,
	}
}

func key(articleID string) string { return keyPrefix + articleID }

func fieldFor(action domain.EngagementAction) string {
	switch action {
	case domain.ActionLike:
		return fieldLikes
	case domain.ActionShare:
		return fieldShares
	default:
		return fieldViews
	}
}

// RecordEvent increments atomically at the store (HINCRBY), creates the hash
// when absent, and resets the retention TTL on every write.
func (t *redisTracker) RecordEvent(ctx context.Context, articleID string, action domain.EngagementAction) error {
	if err := validateEvent(articleID, action); err != nil {
		return err
	}
	k := key(articleID)
	pipe := t.rdb.TxPipeline()
	pipe.HIncrBy(ctx, k, fieldFor(action), 1)
	pipe.HSet(ctx, k, fieldUpdatedAt, time.Now().UTC().Format(time.RFC3339Nano))
	pipe.Expire(ctx, k, t.retention)
	_, err := pipe.Exec(ctx)
	return err
}

func (t *redisTracker) Record(ctx context.Context, articleID string) (*domain.EngagementRecord, error) {
	fields, err := t.rdb.HGetAll(ctx, key(articleID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeRecord(articleID, fields), nil
}

func (t *redisTracker) Score(ctx context.Context, articleID string) (float64, error) {
	rec, err := t.Record(ctx, articleID)
	if err != nil {
		return 0, err
	}
	return ScoreOf(rec, t.weights), nil
}

func (t *redisTracker) ScoreMany(ctx context.Context, articleIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(articleIDs))
	if len(articleIDs) == 0 {
		return out, nil
	}

	pipe := t.rdb.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(articleIDs))
	for i, id := range articleIDs {
		cmds[i] = pipe.HGetAll(ctx, key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	for i, id := range articleIDs {
		fields, err := cmds[i].Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			out[id] = ColdStartScore
			continue
		}
		out[id] = ScoreOf(decodeRecord(id, fields), t.weights)
	}
	return out, nil
}

func decodeRecord(articleID string, fields map[string]string) *domain.EngagementRecord {
	rec := &domain.EngagementRecord{ArticleID: articleID}
	rec.Views, _ = strconv.ParseInt(fields[fieldViews], 10, 64)
	rec.Likes, _ = strconv.ParseInt(fields[fieldLikes], 10, 64)
	rec.Shares, _ = strconv.ParseInt(fields[fieldShares], 10, 64)
	if ts, err := time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt]); err == nil {
		rec.UpdatedAt = ts
	}
	return rec
}
