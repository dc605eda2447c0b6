package eventpipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"surf-core/internal/coreapi"
)

func mkEvent(app, eventType string, ts time.Time) coreapi.Event {
	return coreapi.Event{
		EventID:   "e-" + ts.String(),
		TS:        ts,
		App:       app,
		EventType: eventType,
	}
}

func TestSessionize_SplitsOnIdleGapBeyondCutoff(t *testing.T) {
	base := time.Now()
	events := []coreapi.Event{
		mkEvent("Safari", "click", base),
		mkEvent("Safari", "click", base.Add(1*time.Minute)),
		mkEvent("Mail", "click", base.Add(20*time.Minute)),
	}

	sessions := sessionize(events, 15*time.Minute)
	require.Len(t, sessions, 2)
	require.Equal(t, 2, sessions[0].Summary.EventCount)
	require.Equal(t, 1, sessions[1].Summary.EventCount)
}

func TestSessionize_KeepsRunTogetherAtCutoffBoundary(t *testing.T) {
	base := time.Now()
	events := []coreapi.Event{
		mkEvent("Safari", "click", base),
		mkEvent("Safari", "click", base.Add(15*time.Minute)),
	}

	sessions := sessionize(events, 15*time.Minute)
	require.Len(t, sessions, 1)
	require.Equal(t, 2, sessions[0].Summary.EventCount)
}

func TestSessionize_StartNeverAfterEnd(t *testing.T) {
	base := time.Now()
	events := []coreapi.Event{
		mkEvent("Safari", "click", base),
		mkEvent("Safari", "click", base.Add(2*time.Minute)),
		mkEvent("Safari", "click", base.Add(3*time.Minute)),
	}

	for _, sess := range sessionize(events, 15*time.Minute) {
		require.False(t, sess.StartTS.After(sess.EndTS))
		require.Equal(t, sess.EndTS.Sub(sess.StartTS), sess.Duration)
	}
}

func TestSessionize_TopAppIsMostFrequent(t *testing.T) {
	base := time.Now()
	events := []coreapi.Event{
		mkEvent("Safari", "click", base),
		mkEvent("Mail", "click", base.Add(1*time.Second)),
		mkEvent("Safari", "click", base.Add(2*time.Second)),
	}

	sessions := sessionize(events, 15*time.Minute)
	require.Len(t, sessions, 1)
	require.Equal(t, "Safari", sessions[0].Summary.TopApp)
}

func TestSessionize_EmptyInputProducesNoSessions(t *testing.T) {
	require.Nil(t, sessionize(nil, 15*time.Minute))
}

func TestSessionize_DistinctSessionIDs(t *testing.T) {
	base := time.Now()
	events := []coreapi.Event{
		mkEvent("Safari", "click", base),
		mkEvent("Mail", "click", base.Add(20*time.Minute)),
	}

	sessions := sessionize(events, 15*time.Minute)
	require.Len(t, sessions, 2)
	require.NotEqual(t, sessions[0].SessionID, sessions[1].SessionID)
	require.NotEmpty(t, sessions[0].SessionID)
}
