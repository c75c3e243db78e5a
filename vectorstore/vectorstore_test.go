package vectorstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/agentcache/gateway/vectorstore"
)

func TestInMemoryStore_QueryRanksBySimilarity(t *testing.T) {
	s := vectorstore.NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	must := func(rec vectorstore.Record) {
		if err := s.Upsert(ctx, rec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	must(vectorstore.Record{
		ID: "a", Namespace: "default", Provider: "openai", Model: "gpt-4",
		Embedding: []float64{1, 0, 0}, Response: "R-a",
		CachedAt: now, ExpiresAt: now.Add(time.Hour),
	})
	must(vectorstore.Record{
		ID: "b", Namespace: "default", Provider: "openai", Model: "gpt-4",
		Embedding: []float64{0, 1, 0}, Response: "R-b",
		CachedAt: now, ExpiresAt: now.Add(time.Hour),
	})

	matches, err := s.Query(ctx, []float64{1, 0, 0}, 1, vectorstore.Filter{
		Namespace: "default", Provider: "openai", Model: "gpt-4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "a" {
		t.Fatalf("expected top match 'a', got %+v", matches)
	}
	if matches[0].Score < 0.99 {
		t.Fatalf("expected near-1.0 similarity, got %v", matches[0].Score)
	}
}

func TestInMemoryStore_NamespaceIsolation(t *testing.T) {
	s := vectorstore.NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_ = s.Upsert(ctx, vectorstore.Record{
		ID: "a", Namespace: "acme", Provider: "openai", Model: "gpt-4",
		Embedding: []float64{1, 0}, CachedAt: now, ExpiresAt: now.Add(time.Hour),
	})

	matches, err := s.Query(ctx, []float64{1, 0}, 5, vectorstore.Filter{Namespace: "default"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no cross-namespace matches, got %+v", matches)
	}
}

func TestInMemoryStore_ExpiredEntriesSkipped(t *testing.T) {
	s := vectorstore.NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_ = s.Upsert(ctx, vectorstore.Record{
		ID: "a", Namespace: "default", Provider: "openai", Model: "gpt-4",
		Embedding: []float64{1, 0}, CachedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	})

	matches, err := s.Query(ctx, []float64{1, 0}, 5, vectorstore.Filter{Namespace: "default"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected expired entry to be excluded, got %+v", matches)
	}
}

func TestInMemoryStore_TieBreakOnRecency(t *testing.T) {
	s := vectorstore.NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_ = s.Upsert(ctx, vectorstore.Record{
		ID: "older", Namespace: "default", Embedding: []float64{1, 0},
		CachedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour),
	})
	_ = s.Upsert(ctx, vectorstore.Record{
		ID: "newer", Namespace: "default", Embedding: []float64{1, 0},
		CachedAt: now, ExpiresAt: now.Add(time.Hour),
	})

	matches, err := s.Query(ctx, []float64{1, 0}, 1, vectorstore.Filter{Namespace: "default"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "newer" {
		t.Fatalf("expected tie-break to prefer most recent entry, got %+v", matches)
	}
}
