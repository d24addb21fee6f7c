package viewed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memorySet struct {
	mu        sync.RWMutex
	sets      map[uuid.UUID]map[string]struct{}
	expiry    map[uuid.UUID]time.Time
	retention time.Duration
	now       func() time.Time
}

func NewMemorySet(retention time.Duration) Set {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &memorySet{
		sets:      make(map[uuid.UUID]map[string]struct{}),
		expiry:    make(map[uuid.UUID]time.Time),
		retention: retention,
		now:       func() time.Time { return time.Now() },
	}
}

func (s *memorySet) Add(_ context.Context, userID uuid.UUID, articleID string) error {
	if userID == uuid.Nil || articleID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.live(userID)
	if set == nil {
		set = make(map[string]struct{})
		s.sets[userID] = set
	}
	set[articleID] = struct{}{}
	s.expiry[userID] = s.now().Add(s.retention)
	return nil
}

func (s *memorySet) live(userID uuid.UUID) map[string]struct{} {
	set, ok := s.sets[userID]
	if !ok {
		return nil
	}
	if exp, ok := s.expiry[userID]; ok && s.now().After(exp) {
		delete(s.sets, userID)
		delete(s.expiry, userID)
		return nil
	}
	return set
}

func (s *memorySet) Contains(_ context.Context, userID uuid.UUID, articleID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.live(userID)
	if set == nil {
		return false, nil
	}
	_, ok := set[articleID]
	return ok, nil
}

func (s *memorySet) Members(_ context.Context, userID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.live(userID)
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out, nil
}

func (s *memorySet) Clear(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, userID)
	delete(s.expiry, userID)
	return nil
}
