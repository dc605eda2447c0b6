package llmclient

import (
	"context"
	"strings"

	"surf-core/internal/planner"
)

const planSystemPrompt = `You control a desktop by emitting a single JSON action object per turn.
Respond with exactly one JSON object, no surrounding prose, no markdown fences.
The object has an "action" field plus whatever fields that action needs, e.g.:
{"action":"open_url","url":"https://..."}
{"action":"click_ref","ref":"<stable_ref_id from the last snapshot>"}
{"action":"type","text":"..."}
{"action":"key","key":"escape"}
{"action":"shell","cmd":"..."}
{"action":"wait","seconds":1}
{"action":"report","text":"why you cannot continue"}
{"action":"done","text":"summary of what was accomplished"}
If you are unsure what is on screen, prefer "snapshot" before guessing at a ref.
If the goal is already satisfied, respond with "done". If it cannot be done
safely or at all, respond with "report".`

// NextAction implements planner.PlanLLM: it renders the goal, pruned
// history, and any replan hint as a single user turn and asks the model for
// the next action as raw JSON, which the Planner's normalizer repairs and
// validates (§4.5 steps 3-4).
func (c *Client) NextAction(ctx context.Context, req planner.PlanRequest) (string, error) {
	var b strings.Builder
	b.WriteString("Goal: ")
	b.WriteString(req.Goal)
	b.WriteString("\n")

	if len(req.History) > 0 {
		b.WriteString("\nRecent history:\n")
		for _, line := range req.History {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	if req.Observation != "" {
		b.WriteString("\nCurrent observation:\n")
		b.WriteString(req.Observation)
		b.WriteString("\n")
	}
	if req.Hint != "" {
		b.WriteString("\n")
		b.WriteString(req.Hint)
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with the next action as a single JSON object.")

	return c.complete(ctx, planSystemPrompt, []anthropicMessage{
		{Role: "user", Content: b.String()},
	})
}
