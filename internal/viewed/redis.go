package viewed

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
)

const keyPrefix = "pf:viewed:"

type redisSet struct {
	log       *logger.Logger
	rdb       *goredis.Client
	retention time.Duration
}

func NewRedisSet(baseLog *logger.Logger, rdb *goredis.Client, retention time.Duration) Set {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &redisSet{
		log:       baseLog.With("service", "ViewedSet"),
		rdb:       rdb,
		retention: retention,
	}
}

func key(userID uuid.UUID) string { return keyPrefix + userID.String() }

// Add is idempotent (SADD) and refreshes the set's TTL.
func (s *redisSet) Add(ctx context.Context, userID uuid.UUID, articleID string) error {
	if userID == uuid.Nil || articleID == "" {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, key(userID), articleID)
	pipe.Expire(ctx, key(userID), s.retention)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisSet) Contains(ctx context.Context, userID uuid.UUID, articleID string) (bool, error) {
	return s.rdb.SIsMember(ctx, key(userID), articleID).Result()
}

func (s *redisSet) Members(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.rdb.SMembers(ctx, key(userID)).Result()
}

func (s *redisSet) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.rdb.Del(ctx, key(userID)).Err()
}
