package llmclient

import "context"

const askSystemPrompt = `You answer a single yes/no question about the current screen.
Respond with exactly "YES" or "NO" as the first word, optionally followed by
a short reason on the same line.`

// Ask implements verifier.VisualAsker: a yes/no question answered against
// whatever the caller already placed in context (§4.4.3 Visual check).
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	return c.complete(ctx, askSystemPrompt, []anthropicMessage{
		{Role: "user", Content: question},
	})
}
