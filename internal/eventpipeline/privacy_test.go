package eventpipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"surf-core/internal/coreapi"
)

func TestPrivacyMask_DenyFieldDropsPayload(t *testing.T) {
	m := NewPrivacyMask("salt", []string{"password"}, nil)
	ev := coreapi.Event{
		EventID: "e1",
		Payload: map[string]any{"password": "hunter2", "field": "ok"},
	}

	out := m.Apply(ev)
	_, exists := out.Payload["password"]
	require.False(t, exists)
	require.Equal(t, "ok", out.Payload["field"])
	require.NotNil(t, out.Privacy)
	require.True(t, out.Privacy.Dropped)
	require.Contains(t, out.Privacy.Redacted, "password")
}

func TestPrivacyMask_HashFieldIsIrreversible(t *testing.T) {
	m := NewPrivacyMask("salt", nil, []string{"window_title"})
	ev := coreapi.Event{
		EventID: "e1",
		Payload: map[string]any{"window_title": "secret document.txt"},
	}

	out := m.Apply(ev)
	hashed := out.Payload["window_title"].(string)
	require.NotEqual(t, "secret document.txt", hashed)
	require.Contains(t, hashed, "h:")
	require.NotNil(t, out.Privacy)
	require.Contains(t, out.Privacy.Hashed, "window_title")
}

func TestPrivacyMask_ApplyIsIdempotent(t *testing.T) {
	m := NewPrivacyMask("salt", []string{"password"}, []string{"window_title"})
	ev := coreapi.Event{
		EventID: "e1",
		Payload: map[string]any{"password": "hunter2", "window_title": "secret"},
	}

	once := m.Apply(ev)
	twice := m.Apply(once)

	require.Equal(t, once.Payload["window_title"], twice.Payload["window_title"])
	require.Equal(t, once.Privacy.Hashed, twice.Privacy.Hashed)
	require.Equal(t, once.Privacy.Redacted, twice.Privacy.Redacted)
}

func TestPrivacyMask_DifferentSaltsProduceDifferentHashes(t *testing.T) {
	ev := coreapi.Event{
		EventID: "e1",
		Payload: map[string]any{"window_title": "secret"},
	}

	a := NewPrivacyMask("salt-a", nil, []string{"window_title"}).Apply(ev)
	b := NewPrivacyMask("salt-b", nil, []string{"window_title"}).Apply(ev)

	require.NotEqual(t, a.Payload["window_title"], b.Payload["window_title"])
}
