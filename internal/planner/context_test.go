package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surf-core/internal/coreapi"
)

func TestPruneHistory(t *testing.T) {
	history := []string{"a", "b", "c", "d", "e"}
	pruned := pruneHistory(history, 3, 0)
	require.Equal(t, []string{"c", "d", "e"}, pruned)
}

func msgAt(t *testing.T, layout string, offset time.Duration, base time.Time) coreapi.ChatMessage {
	t.Helper()
	return coreapi.ChatMessage{CreatedAt: base.Add(offset), Role: "user", Content: "hi"}
}

func TestSessionResetCutoff_Off(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	cutoff := SessionResetCutoff(now, SessionResetOff, 4, 120, nil)
	assert.True(t, cutoff.IsZero())
}

func TestSessionResetCutoff_Daily(t *testing.T) {
	now := time.Date(2026, 7, 31, 2, 30, 0, 0, time.UTC) // before today's 04:00 boundary
	cutoff := SessionResetCutoff(now, SessionResetDaily, 4, 120, nil)
	want := time.Date(2026, 7, 30, 4, 0, 0, 0, time.UTC)
	assert.True(t, cutoff.Equal(want), "got %v want %v", cutoff, want)

	now2 := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC) // after today's 04:00 boundary
	cutoff2 := SessionResetCutoff(now2, SessionResetDaily, 4, 120, nil)
	want2 := time.Date(2026, 7, 31, 4, 0, 0, 0, time.UTC)
	assert.True(t, cutoff2.Equal(want2), "got %v want %v", cutoff2, want2)
}

func TestSessionResetCutoff_Idle(t *testing.T) {
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	messages := []coreapi.ChatMessage{
		msgAt(t, "", 0*time.Minute, base),
		msgAt(t, "", 5*time.Minute, base),
		// idle gap > 120 minutes here
		msgAt(t, "", 300*time.Minute, base),
		msgAt(t, "", 305*time.Minute, base),
	}
	cutoff := SessionResetCutoff(base.Add(400*time.Minute), SessionResetIdle, 4, 120, messages)
	assert.True(t, cutoff.Equal(messages[2].CreatedAt))
}

func TestSessionResetCutoff_BothTakesLaterBoundary(t *testing.T) {
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	now := base.Add(10 * time.Hour) // daily boundary today at hour 4 is earlier than idle cutoff below
	messages := []coreapi.ChatMessage{
		msgAt(t, "", 0*time.Minute, base),
		msgAt(t, "", 50*time.Minute, base), // idle gap small, so idle boundary = first message
	}
	cutoff := SessionResetCutoff(now, SessionResetBoth, 4, 120, messages)
	dailyWant := time.Date(2026, 7, 31, 4, 0, 0, 0, time.UTC)
	assert.True(t, cutoff.Equal(dailyWant), "both should pick the later (daily) boundary: got %v want %v", cutoff, dailyWant)
}

func TestFilterChatHistory(t *testing.T) {
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	messages := []coreapi.ChatMessage{
		{CreatedAt: base, Content: "old"},
		{CreatedAt: base.Add(time.Hour), Content: "new"},
	}
	kept := FilterChatHistory(messages, base.Add(30*time.Minute))
	require.Len(t, kept, 1)
	assert.Equal(t, "new", kept[0].Content)

	unfiltered := FilterChatHistory(messages, time.Time{})
	assert.Len(t, unfiltered, 2)
}
