package llmclient

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"surf-core/internal/coreapi"
	"surf-core/internal/planner"
)

func newIPv4TestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: unable to create loopback listener: %v", err)
	}

	server := httptest.NewUnstartedServer(handler)
	server.Listener = ln
	server.Start()
	t.Cleanup(server.Close)

	return server
}

func TestNextAction_SendsGoalAndParsesTextBlock(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Path; got != "/messages" {
			t.Fatalf("unexpected path: %s", got)
		}
		if got := r.Header.Get(anthropicRequestHeaderKey); got != "sk-ant-test" {
			t.Fatalf("expected api key header, got %q", got)
		}

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "claude-test", payload["model"])

		msgs, ok := payload["messages"].([]any)
		require.True(t, ok)
		require.Len(t, msgs, 1)
		first := msgs[0].(map[string]any)
		require.Contains(t, first["content"], "Goal: open slack")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "msg-1", "role": "assistant", "stop_reason": "end_turn",
			"content": []any{map[string]any{"type": "text", "text": `{"action":"open_app","app":"Slack"}`}},
		})
	}))

	client, err := NewAnthropicClient("claude-test", Config{APIKey: "sk-ant-test", BaseURL: server.URL})
	require.NoError(t, err)

	raw, err := client.NextAction(context.Background(), planner.PlanRequest{Goal: "open slack"})
	require.NoError(t, err)
	require.Equal(t, `{"action":"open_app","app":"Slack"}`, raw)
}

func TestNextAction_UsesBearerTokenForNonAPIKeyCredentials(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer oauth-token" {
			t.Fatalf("expected bearer header, got %q", got)
		}
		if got := r.Header.Get(anthropicRequestHeaderKey); got != "" {
			t.Fatalf("expected no api key header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []any{map[string]any{"type": "text", "text": "ok"}},
		})
	}))

	client, err := NewAnthropicClient("claude-test", Config{APIKey: "oauth-token", BaseURL: server.URL})
	require.NoError(t, err)

	raw, err := client.NextAction(context.Background(), planner.PlanRequest{Goal: "anything"})
	require.NoError(t, err)
	require.Equal(t, "ok", raw)
}

func TestComplete_RetriesOn5xxThenSucceeds(t *testing.T) {
	attempts := 0
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []any{map[string]any{"type": "text", "text": "recovered"}},
		})
	}))

	client, err := NewAnthropicClient("claude-test", Config{APIKey: "sk-ant-test", BaseURL: server.URL})
	require.NoError(t, err)

	raw, err := client.complete(context.Background(), "", []anthropicMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	require.Equal(t, "recovered", raw)
	require.GreaterOrEqual(t, attempts, 2)
}

func TestComplete_DoesNotRetryOn4xx(t *testing.T) {
	attempts := 0
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad request"}}`))
	}))

	client, err := NewAnthropicClient("claude-test", Config{APIKey: "sk-ant-test", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.complete(context.Background(), "", []anthropicMessage{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestGenerateProposal_ParsesJSONResponse(t *testing.T) {
	server := newIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []any{map[string]any{
				"type": "text",
				"text": `{"title":"Daily Standup Notes","summary":"Opens the notes app every morning.","n8n_prompt":"trigger at 9am, open notes"}`,
			}},
		})
	}))

	client, err := NewAnthropicClient("claude-test", Config{APIKey: "sk-ant-test", BaseURL: server.URL})
	require.NoError(t, err)

	title, summary, n8nPrompt, err := client.GenerateProposal(context.Background(), coreapi.DetectedPattern{
		Type:        coreapi.PatternTimeBasedAction,
		Description: "opens Notes every morning",
		Occurrences: 5,
	})
	require.NoError(t, err)
	require.Equal(t, "Daily Standup Notes", title)
	require.Contains(t, summary, "notes app")
	require.Contains(t, n8nPrompt, "9am")
}
