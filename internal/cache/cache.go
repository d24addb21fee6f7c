package cache

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pulsefeed/pulsefeed-backend/internal/platform/logger"
)

// Namespace partitions the cache keyspace; each namespace carries its own TTL
// policy and can be cleared independently.
type Namespace string

const (
	NamespaceRequest    Namespace = "request"
	NamespaceQuery      Namespace = "query"
	NamespaceSimilarity Namespace = "similarity"
	NamespaceUser       Namespace = "user"
)

func Namespaces() []Namespace {
	return []Namespace{NamespaceRequest, NamespaceQuery, NamespaceSimilarity, NamespaceUser}
}

func ValidNamespace(ns Namespace) bool {
	switch ns {
	case NamespaceRequest, NamespaceQuery, NamespaceSimilarity, NamespaceUser:
		return true
	}
	return false
}

// TTLPolicy holds the per-namespace expiry applied when Set is called with
// ttl <= 0. TTL is a safety net; explicit invalidation is the primary
// consistency mechanism.
type TTLPolicy map[Namespace]time.Duration

func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		NamespaceRequest:    2 * time.Minute,
		NamespaceQuery:      5 * time.Minute,
		NamespaceSimilarity: 30 * time.Minute,
		NamespaceUser:       10 * time.Minute,
	}
}

type Stats struct {
	Entries map[Namespace]int64 `json:"entries"`
	Total   int64               `json:"total"`
}

// Store is the multi-namespace read-through/write-through cache in front of
// the document store, trending ranker and similarity engine. An expired or
// evicted entry is indistinguishable from an absent one.
type Store interface {
	Get(ctx context.Context, ns Namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, ns Namespace, key string, payload []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, ns Namespace, key string) error
	ClearPrefix(ctx context.Context, ns Namespace, prefix string) (int64, error)
	ClearNamespace(ctx context.Context, ns Namespace) (int64, error)
	ClearAll(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
	TTL(ns Namespace) time.Duration
}

const keyPrefix = "pf:cache:"

type redisStore struct {
	log    *logger.Logger
	rdb    *goredis.Client
	policy TTLPolicy
}

func NewRedisStore(baseLog *logger.Logger, rdb *goredis.Client, policy TTLPolicy) Store {
	if policy == nil {
		policy = DefaultTTLPolicy()
	}
	return &redisStore{
		log:    baseLog.With("service", "CacheStore"),
		rdb:    rdb,
		policy: policy,
	}
}

func (s *redisStore) key(ns Namespace, key string) string {
	return keyPrefix + string(ns) + ":" + key
}

func (s *redisStore) TTL(ns Namespace) time.Duration {
	if ttl, ok := s.policy[ns]; ok {
		return ttl
	}
	return time.Minute
}

// Get reports a miss for absent, expired and evicted entries alike.
func (s *redisStore) Get(ctx context.Context, ns Namespace, key string) ([]byte, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(ns, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Set overwrites unconditionally and resets the TTL clock.
func (s *redisStore) Set(ctx context.Context, ns Namespace, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.TTL(ns)
	}
	return s.rdb.Set(ctx, s.key(ns, key), payload, ttl).Err()
}

func (s *redisStore) Invalidate(ctx context.Context, ns Namespace, key string) error {
	return s.rdb.Del(ctx, s.key(ns, key)).Err()
}

func (s *redisStore) ClearPrefix(ctx context.Context, ns Namespace, prefix string) (int64, error) {
	return s.deletePattern(ctx, s.key(ns, prefix)+"*")
}

func (s *redisStore) ClearNamespace(ctx context.Context, ns Namespace) (int64, error) {
	return s.deletePattern(ctx, keyPrefix+string(ns)+":*")
}

func (s *redisStore) ClearAll(ctx context.Context) (int64, error) {
	return s.deletePattern(ctx, keyPrefix+"*")
}

func (s *redisStore) deletePattern(ctx context.Context, pattern string) (int64, error) {
	var removed int64
	iter := s.rdb.Scan(ctx, 0, pattern, 200).Iterator()
	batch := make([]string, 0, 200)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.rdb.Del(ctx, batch...).Result()
		removed += n
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 200 {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	if err := flush(); err != nil {
		return removed, err
	}
	return removed, nil
}

func (s *redisStore) Stats(ctx context.Context) (*Stats, error) {
	out := &Stats{Entries: make(map[Namespace]int64, len(Namespaces()))}
	for _, ns := range Namespaces() {
		var count int64
		iter := s.rdb.Scan(ctx, 0, keyPrefix+string(ns)+":*", 500).Iterator()
		for iter.Next(ctx) {
			count++
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		out.Entries[ns] = count
		out.Total += count
	}
	return out, nil
}
