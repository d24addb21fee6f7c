package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

type memoryStore struct {
	mu        sync.RWMutex
	vectors   map[string][]float32
	vectorDim int
}

// NewMemoryStore is the in-process index used in single-node mode and tests.
// Exact cosine scan; fine for corpora that fit in memory.
func NewMemoryStore(vectorDim int) Store {
	return &memoryStore{
		vectors:   make(map[string][]float32),
		vectorDim: vectorDim,
	}
}

func (s *memoryStore) Upsert(_ context.Context, vectors []Vector) error {
	const op = "upsert"
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if v.ID == "" {
			return opErr(op, OperationErrorValidation, "vector id is required", nil)
		}
		if s.vectorDim > 0 && len(v.Values) != s.vectorDim {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("vector %q dimension mismatch: expected=%d got=%d", v.ID, s.vectorDim, len(v.Values)), nil)
		}
		cp := make([]float32, len(v.Values))
		copy(cp, v.Values)
		s.vectors[v.ID] = cp
	}
	return nil
}

func (s *memoryStore) Query(_ context.Context, q []float32, topK int, excludeIDs []string) ([]Match, error) {
	const op = "query"
	if len(q) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if s.vectorDim > 0 && len(q) != s.vectorDim {
		return nil, opErr(op, OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", s.vectorDim, len(q)), nil)
	}
	if topK <= 0 {
		topK = 10
	}

	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	s.mu.RLock()
	matches := make([]Match, 0, len(s.vectors))
	for id, vec := range s.vectors {
		if _, skip := excluded[id]; skip {
			continue
		}
		matches = append(matches, Match{ID: id, Score: CosineSimilarity(q, vec)})
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *memoryStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.vectors, id)
	}
	return nil
}

// CosineSimilarity returns 0 for mismatched or zero-magnitude vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
