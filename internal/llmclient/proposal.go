package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"surf-core/internal/coreapi"
)

const proposalSystemPrompt = `You write short automation proposals for a desktop assistant.
Given a detected behavioral pattern, respond with exactly one JSON object:
{"title":"...","summary":"...","n8n_prompt":"..."}
"title" is a short human-facing name (3-6 words).
"summary" is one or two sentences describing what the automation would do.
"n8n_prompt" is a single paragraph describing the workflow to an n8n workflow
generator: trigger condition, steps, and expected outcome.
No prose outside the JSON object.`

type proposalResponse struct {
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	N8NPrompt string `json:"n8n_prompt"`
}

// GenerateProposal implements pattern.ProposalLLM: called only for patterns
// no template matched, and only after the caller has already checked PII and
// budget gating (§4.7 step 4).
func (c *Client) GenerateProposal(ctx context.Context, p coreapi.DetectedPattern) (title, summary, n8nPrompt string, err error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Pattern type: %s\n", p.Type)
	fmt.Fprintf(&b, "Description: %s\n", p.Description)
	fmt.Fprintf(&b, "Occurrences: %d\n", p.Occurrences)
	fmt.Fprintf(&b, "Similarity score: %.2f\n", p.SimilarityScore)

	raw, err := c.complete(ctx, proposalSystemPrompt, []anthropicMessage{
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		return "", "", "", err
	}

	var parsed proposalResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return "", "", "", fmt.Errorf("llmclient: could not parse proposal response: %w", err)
	}
	if parsed.Title == "" || parsed.Summary == "" {
		return "", "", "", fmt.Errorf("llmclient: proposal response missing title or summary")
	}
	return parsed.Title, parsed.Summary, parsed.N8NPrompt, nil
}

// extractJSONObject strips any stray text surrounding the first {...} block,
// in case the model ignores the "no prose" instruction.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
