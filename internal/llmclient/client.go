// Package llmclient is the production implementation of the capability
// records the Planner and Pattern Engine depend on (planner.PlanLLM,
// pattern.ProposalLLM): an HTTP client for an Anthropic Messages-API-shaped
// vision/text model, following the teacher's own anthropic client
// (request/response shape, header names, OAuth-token fallback) wrapped in
// the same retry and circuit-breaker machinery the teacher wraps every
// outbound model call in.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	coreerrors "surf-core/internal/errors"
	"surf-core/internal/logging"
)

const (
	anthropicRequestHeaderKey = "x-api-key"
	anthropicVersionHeaderKey = "anthropic-version"
	anthropicBetaHeaderKey    = "anthropic-beta"
	anthropicVersion          = "2023-06-01"
	anthropicVisionBetaHeader = "computer-use-2024-10-22"

	defaultBaseURL = "https://api.anthropic.com/v1"
)

// Config wires a Client to a specific model endpoint and credential. APIKey
// starting with "sk-ant-" is sent as x-api-key; anything else is treated as
// an OAuth bearer token (mirrors the teacher's dual-credential Anthropic
// client, which exists because some deployments authenticate through an
// OAuth proxy instead of a raw API key).
type Config struct {
	APIKey     string
	BaseURL    string
	MaxTokens  int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls an Anthropic Messages-API-compatible endpoint to turn a
// system prompt plus message transcript into free text, with linear-backoff
// retry and circuit-breaker protection around the transport.
type Client struct {
	model      string
	apiKey     string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
	retry      coreerrors.RetryConfig
	breaker    *coreerrors.CircuitBreaker
	logger     logging.Logger
}

// NewAnthropicClient builds a Client for the given model.
func NewAnthropicClient(model string, cfg Config) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("llmclient: model is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		model:      model,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxTokens:  maxTokens,
		httpClient: httpClient,
		retry:      coreerrors.DefaultRetryConfig(),
		breaker:    coreerrors.NewCircuitBreaker("llm-"+model, coreerrors.DefaultCircuitBreakerConfig()),
		logger:     logging.NewComponentLogger("llmclient"),
	}, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Role       string                  `json:"role"`
	StopReason string                  `json:"stop_reason"`
	Content    []anthropicContentBlock `json:"content"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// complete sends system+messages and returns the first text content block,
// retried under the client's RetryConfig and guarded by its CircuitBreaker.
func (c *Client) complete(ctx context.Context, system string, messages []anthropicMessage) (string, error) {
	if err := c.breaker.Allow(); err != nil {
		return "", err
	}

	text, err := coreerrors.RetryWithResultAndLog(ctx, c.retry, func(ctx context.Context) (string, error) {
		return c.doRequest(ctx, system, messages)
	}, c.logger)

	c.breaker.Mark(err)
	return text, err
}

func (c *Client) doRequest(ctx context.Context, system string, messages []anthropicMessage) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		System:    system,
		Messages:  messages,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", coreerrors.NewCoreError(coreerrors.KindExecutionError, err, "could not encode LLM request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", coreerrors.NewCoreError(coreerrors.KindExecutionError, err, "could not build LLM request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(anthropicVersionHeaderKey, anthropicVersion)
	req.Header.Set(anthropicBetaHeaderKey, anthropicVisionBetaHeader)
	if strings.HasPrefix(c.apiKey, "sk-ant-") || c.apiKey == "" {
		req.Header.Set(anthropicRequestHeaderKey, c.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", coreerrors.NewCoreError(coreerrors.KindNetworkError, err, "LLM request failed: "+err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", coreerrors.NewCoreError(coreerrors.KindNetworkError, err, "could not read LLM response")
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", coreerrors.NewCoreError(coreerrors.KindNetworkError, fmt.Errorf("llm http %d: %s", resp.StatusCode, raw), "LLM endpoint temporarily unavailable")
	}
	if resp.StatusCode >= 400 {
		return "", coreerrors.NewCoreError(coreerrors.KindExecutionError, fmt.Errorf("llm http %d: %s", resp.StatusCode, raw), "LLM request rejected")
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", coreerrors.NewCoreError(coreerrors.KindNetworkError, err, "LLM returned unparseable response")
	}
	if parsed.Error != nil {
		return "", coreerrors.NewCoreError(coreerrors.KindExecutionError, fmt.Errorf("llm error: %s", parsed.Error.Message), parsed.Error.Message)
	}

	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", coreerrors.NewCoreError(coreerrors.KindSchemaError, fmt.Errorf("llm response had no text content"), "LLM produced an empty response")
}
