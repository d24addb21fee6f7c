package cache

import (
	"context"
	"testing"
	"time"
)

func newTestStore() (*memoryStore, *time.Time) {
	now := time.Now().UTC()
	s := NewMemoryStore(DefaultTTLPolicy()).(*memoryStore)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestSetThenGetWithinTTL(t *testing.T) {
	s, now := newTestStore()
	ctx := context.Background()

	if err := s.Set(ctx, NamespaceQuery, "k1", []byte("payload"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	payload, hit, err := s.Get(ctx, NamespaceQuery, "k1")
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if string(payload) != "payload" {
		t.Fatalf("unexpected payload %q", payload)
	}

	// same key, other namespace, must miss
	if _, hit, _ := s.Get(ctx, NamespaceRequest, "k1"); hit {
		t.Fatalf("namespaces must not share entries")
	}

	*now = now.Add(DefaultTTLPolicy()[NamespaceQuery] + time.Second)
	if _, hit, _ := s.Get(ctx, NamespaceQuery, "k1"); hit {
		t.Fatalf("expected miss after TTL expiry")
	}
}

func TestSetOverwritesAndResetsTTL(t *testing.T) {
	s, now := newTestStore()
	ctx := context.Background()

	if err := s.Set(ctx, NamespaceRequest, "k", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	*now = now.Add(50 * time.Second)
	if err := s.Set(ctx, NamespaceRequest, "k", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	*now = now.Add(50 * time.Second)

	payload, hit, _ := s.Get(ctx, NamespaceRequest, "k")
	if !hit || string(payload) != "v2" {
		t.Fatalf("expected v2 alive after TTL reset, hit=%v payload=%q", hit, payload)
	}
}

func TestInvalidateIsExactKey(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	_ = s.Set(ctx, NamespaceUser, "u1:feed:1", []byte("a"), 0)
	_ = s.Set(ctx, NamespaceUser, "u1:feed:2", []byte("b"), 0)
	if err := s.Invalidate(ctx, NamespaceUser, "u1:feed:1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, hit, _ := s.Get(ctx, NamespaceUser, "u1:feed:1"); hit {
		t.Fatalf("invalidated key still present")
	}
	if _, hit, _ := s.Get(ctx, NamespaceUser, "u1:feed:2"); !hit {
		t.Fatalf("sibling key should survive invalidation")
	}
}

func TestClearPrefixAndNamespaceReportCounts(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	_ = s.Set(ctx, NamespaceUser, "u1:feed:1", []byte("a"), 0)
	_ = s.Set(ctx, NamespaceUser, "u1:feed:2", []byte("b"), 0)
	_ = s.Set(ctx, NamespaceUser, "u2:feed:1", []byte("c"), 0)
	_ = s.Set(ctx, NamespaceQuery, "q", []byte("d"), 0)

	n, err := s.ClearPrefix(ctx, NamespaceUser, "u1:")
	if err != nil {
		t.Fatalf("clear prefix: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 cleared for u1 prefix, got %d", n)
	}
	if _, hit, _ := s.Get(ctx, NamespaceUser, "u2:feed:1"); !hit {
		t.Fatalf("other user's entry should survive prefix clear")
	}

	n, err = s.ClearNamespace(ctx, NamespaceUser)
	if err != nil {
		t.Fatalf("clear namespace: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 remaining user entry cleared, got %d", n)
	}

	n, err = s.ClearAll(ctx)
	if err != nil {
		t.Fatalf("clear all: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 query entry cleared by clear-all, got %d", n)
	}
}

func TestStatsCountsPerNamespace(t *testing.T) {
	s, now := newTestStore()
	ctx := context.Background()

	_ = s.Set(ctx, NamespaceQuery, "a", []byte("1"), time.Minute)
	_ = s.Set(ctx, NamespaceQuery, "b", []byte("2"), time.Hour)
	_ = s.Set(ctx, NamespaceSimilarity, "c", []byte("3"), time.Hour)

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Entries[NamespaceQuery] != 2 || stats.Entries[NamespaceSimilarity] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	*now = now.Add(2 * time.Minute)
	stats, _ = s.Stats(ctx)
	if stats.Total != 2 || stats.Entries[NamespaceQuery] != 1 {
		t.Fatalf("expired entries must not be counted: %+v", stats)
	}
}
