package vectormemory

import (
	"context"
	"fmt"
	"testing"
)

func TestAddAndSearchReturnsClosestMatch(t *testing.T) {
	ctx := context.Background()
	s, err := Open("", 100, HashEmbedder(32), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	if err := s.Add(ctx, "1", "open terminal and run the build script", nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(ctx, "2", "reply to the weekly status email", nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	results, err := s.Search(ctx, "run the build script from the terminal", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "1" {
		t.Fatalf("expected closest match id=1, got %+v", results)
	}
}

func TestCompactKeepsNewestEntries(t *testing.T) {
	ctx := context.Background()
	s, err := Open("", 3, HashEmbedder(16), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := s.Add(ctx, fmt.Sprintf("e%d", i), fmt.Sprintf("entry number %d", i), nil); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	dropped, err := s.Compact(ctx)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if dropped != 2 {
		t.Fatalf("expected 2 dropped entries, got %d", dropped)
	}
	if got := s.Count(); got != 3 {
		t.Fatalf("expected 3 entries after compaction, got %d", got)
	}
}

func TestSearchOnEmptyStoreReturnsNoResults(t *testing.T) {
	ctx := context.Background()
	s, err := Open("", 10, HashEmbedder(16), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	results, err := s.Search(ctx, "anything", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results on empty store, got %d", len(results))
	}
}
