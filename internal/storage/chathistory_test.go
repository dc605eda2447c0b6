package storage

import (
	"context"
	"testing"
	"time"

	"surf-core/internal/coreapi"
)

func TestChatHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Unix(1700000000, 0)
	msgs := []coreapi.ChatMessage{
		{ID: "m1", SessionID: "sess-1", Role: "user", Content: "hello", CreatedAt: base},
		{ID: "m2", SessionID: "sess-1", Role: "assistant", Content: "hi there", CreatedAt: base.Add(time.Minute)},
		{ID: "m3", SessionID: "sess-2", Role: "user", Content: "other session", CreatedAt: base},
	}
	for _, m := range msgs {
		if err := s.InsertChatMessage(ctx, m); err != nil {
			t.Fatalf("insert chat message %s: %v", m.ID, err)
		}
	}

	got, err := s.ChatHistory(ctx, "sess-1")
	if err != nil {
		t.Fatalf("chat history: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages for sess-1, got %d", len(got))
	}
	if got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("expected oldest-first order, got %v", got)
	}
	if !got[0].CreatedAt.Equal(base) {
		t.Fatalf("expected CreatedAt to round-trip, got %v want %v", got[0].CreatedAt, base)
	}

	other, err := s.ChatHistory(ctx, "sess-2")
	if err != nil {
		t.Fatalf("chat history sess-2: %v", err)
	}
	if len(other) != 1 || other[0].ID != "m3" {
		t.Fatalf("expected session isolation, got %v", other)
	}
}
