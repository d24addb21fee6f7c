package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	policy  TTLPolicy
	now     func() time.Time
}

// NewMemoryStore is the single-process fallback used when no Redis address is
// configured, and by tests. Semantics match the Redis store: expired entries
// are misses and are evicted lazily.
func NewMemoryStore(policy TTLPolicy) Store {
	if policy == nil {
		policy = DefaultTTLPolicy()
	}
	return &memoryStore{
		entries: make(map[string]memoryEntry),
		policy:  policy,
		now:     func() time.Time { return time.Now() },
	}
}

func (s *memoryStore) key(ns Namespace, key string) string {
	return string(ns) + ":" + key
}

func (s *memoryStore) TTL(ns Namespace) time.Duration {
	if ttl, ok := s.policy[ns]; ok {
		return ttl
	}
	return time.Minute
}

func (s *memoryStore) Get(_ context.Context, ns Namespace, key string) ([]byte, bool, error) {
	k := s.key(ns, key)
	s.mu.RLock()
	e, ok := s.entries[k]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.entries[k]; ok && s.now().After(cur.expiresAt) {
			delete(s.entries, k)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return e.payload, true, nil
}

func (s *memoryStore) Set(_ context.Context, ns Namespace, key string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.TTL(ns)
	}
	s.mu.Lock()
	s.entries[s.key(ns, key)] = memoryEntry{payload: payload, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Invalidate(_ context.Context, ns Namespace, key string) error {
	s.mu.Lock()
	delete(s.entries, s.key(ns, key))
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) ClearPrefix(_ context.Context, ns Namespace, prefix string) (int64, error) {
	return s.clear(string(ns) + ":" + prefix)
}

func (s *memoryStore) ClearNamespace(_ context.Context, ns Namespace) (int64, error) {
	return s.clear(string(ns) + ":")
}

func (s *memoryStore) ClearAll(_ context.Context) (int64, error) {
	return s.clear("")
}

func (s *memoryStore) clear(prefix string) (int64, error) {
	var removed int64
	s.mu.Lock()
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			removed++
		}
	}
	s.mu.Unlock()
	return removed, nil
}

func (s *memoryStore) Stats(_ context.Context) (*Stats, error) {
	out := &Stats{Entries: make(map[Namespace]int64, len(Namespaces()))}
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			continue
		}
		for _, ns := range Namespaces() {
			if strings.HasPrefix(k, string(ns)+":") {
				out.Entries[ns]++
				out.Total++
				break
			}
		}
	}
	return out, nil
}
