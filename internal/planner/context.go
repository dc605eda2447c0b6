package planner

import (
	"sync"
	"time"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"surf-core/internal/coreapi"
)

// tokenCounter lazily builds one shared cl100k_base encoder, since
// GetEncoding does real work (loading a BPE rank table) that every pruning
// call would otherwise repeat.
type tokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

var sharedTokenCounter tokenCounter

func (c *tokenCounter) get() (*tiktoken.Tiktoken, error) {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding("cl100k_base")
	})
	return c.enc, c.err
}

// countTokens returns the cl100k_base token count of s, falling back to a
// byte-length/4 estimate if the encoder failed to load (e.g. no network access to
// fetch its rank file on first use).
func countTokens(s string) int {
	enc, err := sharedTokenCounter.get()
	if err != nil || enc == nil {
		return len(s)/4 + 1
	}
	return len(enc.Encode(s, nil, nil))
}

// pruneHistory keeps at most maxMessages (default 40) of the most recent
// lines of history and, when maxTokens > 0, only the newest of those whose
// cumulative token count fits within maxTokens, dropping the oldest lines
// first (§4.5's context-window pruning, bounded by
// CONTEXT_PRUNE_MAX_MESSAGES).
func pruneHistory(history []string, maxMessages, maxTokens int) []string {
	if maxMessages <= 0 {
		maxMessages = 40
	}
	if len(history) > maxMessages {
		history = history[len(history)-maxMessages:]
	}
	if maxTokens <= 0 {
		return history
	}

	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		total += countTokens(history[i])
		if total > maxTokens {
			break
		}
		start = i
	}
	return history[start:]
}

// SessionResetMode selects which reset boundary applies to persisted chat
// history (§6 SESSION_RESET_MODE).
const (
	SessionResetOff   = "off"
	SessionResetDaily = "daily"
	SessionResetIdle  = "idle"
	SessionResetBoth  = "both"
)

// SessionResetCutoff computes the reset boundary for a session's chat
// history. "daily" cuts at the most recent local atHour boundary at or
// before now. "idle" cuts at the start of the last run of messages with no
// inter-message gap greater than idleMinutes (scanning backward from the
// newest message). "both" takes the later (more recent) of the two — the
// original implementation takes a max over the two timestamps, and that
// semantics is preserved here verbatim (§9 Open Question).
//
// messages must be ordered oldest-first. A zero Time result means no reset
// applies (mode is "off", or there is no history to reset).
func SessionResetCutoff(now time.Time, mode string, atHour, idleMinutes int, messages []coreapi.ChatMessage) time.Time {
	var daily, idle time.Time

	switch mode {
	case SessionResetDaily, SessionResetBoth:
		daily = dailyBoundary(now, atHour)
	}
	switch mode {
	case SessionResetIdle, SessionResetBoth:
		idle = idleBoundary(messages, idleMinutes)
	}

	switch mode {
	case SessionResetDaily:
		return daily
	case SessionResetIdle:
		return idle
	case SessionResetBoth:
		if idle.After(daily) {
			return idle
		}
		return daily
	default: // off, or unrecognized
		return time.Time{}
	}
}

// dailyBoundary returns the most recent local atHour:00:00 at or before now.
func dailyBoundary(now time.Time, atHour int) time.Time {
	loc := now.Location()
	boundary := time.Date(now.Year(), now.Month(), now.Day(), atHour, 0, 0, 0, loc)
	if boundary.After(now) {
		boundary = boundary.AddDate(0, 0, -1)
	}
	return boundary
}

// idleBoundary scans messages backward from the newest and returns the
// CreatedAt of the oldest message in the run of messages with no
// inter-message gap exceeding idleMinutes. An empty or single-message slice
// has no idle gap to find, so the oldest (or only) message's time is
// returned.
func idleBoundary(messages []coreapi.ChatMessage, idleMinutes int) time.Time {
	if len(messages) == 0 {
		return time.Time{}
	}
	cutoff := time.Duration(idleMinutes) * time.Minute
	start := 0
	for i := len(messages) - 1; i > 0; i-- {
		if messages[i].CreatedAt.Sub(messages[i-1].CreatedAt) > cutoff {
			start = i
			break
		}
	}
	return messages[start].CreatedAt
}

// FilterChatHistory drops every message strictly before cutoff. A zero
// cutoff (reset disabled, or no applicable boundary) returns messages
// unchanged.
func FilterChatHistory(messages []coreapi.ChatMessage, cutoff time.Time) []coreapi.ChatMessage {
	if cutoff.IsZero() {
		return messages
	}
	for i, m := range messages {
		if !m.CreatedAt.Before(cutoff) {
			return messages[i:]
		}
	}
	return nil
}
