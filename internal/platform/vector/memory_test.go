package vector

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical vectors should score 1, got %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Fatalf("orthogonal vectors should score 0, got %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{-1, 0}); math.Abs(got+1) > 1e-9 {
		t.Fatalf("opposite vectors should score -1, got %v", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Fatalf("zero vector should score 0, got %v", got)
	}
}

func TestQueryOrdersNearestFirstAndExcludes(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	err := s.Upsert(ctx, []Vector{
		{ID: "anchor", Values: []float32{1, 0}},
		{ID: "close", Values: []float32{0.9, 0.1}},
		{ID: "far", Values: []float32{0.1, 0.9}},
		{ID: "opposite", Values: []float32{-1, 0}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	matches, err := s.Query(ctx, []float32{1, 0}, 10, []string{"anchor"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	for _, m := range matches {
		if m.ID == "anchor" {
			t.Fatalf("excluded id leaked into results")
		}
	}
	if matches[0].ID != "close" || matches[1].ID != "far" || matches[2].ID != "opposite" {
		t.Fatalf("unexpected order: %v", matches)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Fatalf("scores not descending: %v", matches)
		}
	}
}

func TestQueryTruncatesToTopK(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()
	_ = s.Upsert(ctx, []Vector{
		{ID: "a", Values: []float32{1, 0}},
		{ID: "b", Values: []float32{0.9, 0.1}},
		{ID: "c", Values: []float32{0.5, 0.5}},
	})

	matches, err := s.Query(ctx, []float32{1, 0}, 2, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected topK=2 matches, got %d", len(matches))
	}
}

func TestDimensionValidation(t *testing.T) {
	s := NewMemoryStore(4)
	ctx := context.Background()

	err := s.Upsert(ctx, []Vector{{ID: "bad", Values: []float32{1, 2}}})
	var oe *OperationError
	if !errors.As(err, &oe) || oe.Code != OperationErrorValidation {
		t.Fatalf("expected validation operation error, got %v", err)
	}

	_, err = s.Query(ctx, []float32{1, 2}, 5, nil)
	if !errors.As(err, &oe) || oe.Code != OperationErrorValidation {
		t.Fatalf("expected validation operation error for query, got %v", err)
	}
}

func TestDeleteRemovesFromIndex(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()
	_ = s.Upsert(ctx, []Vector{{ID: "a", Values: []float32{1, 0}}, {ID: "b", Values: []float32{0, 1}}})

	if err := s.Delete(ctx, []string{"a"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	matches, _ := s.Query(ctx, []float32{1, 0}, 10, nil)
	if len(matches) != 1 || matches[0].ID != "b" {
		t.Fatalf("expected only b after delete, got %v", matches)
	}
}
