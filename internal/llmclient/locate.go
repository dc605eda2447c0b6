package llmclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"surf-core/internal/coreapi"
)

// Locate implements actionexec.VisionLocator: it resolves a natural-language
// visual description ("the Submit button") to a stable_ref_id against the
// most recent accessibility snapshot (§4.2 click_visual). Cheap substring
// matching against node names/roles is tried first; only an ambiguous or
// empty result falls through to a model call, since most click_visual
// descriptions name the element's visible label verbatim.
func (c *Client) Locate(ctx context.Context, tree coreapi.UITree, description string) (string, error) {
	nodes := tree.Flatten()
	if ref, ok := uniqueSubstringMatch(nodes, description); ok {
		return ref, nil
	}
	return c.locateViaModel(ctx, nodes, description)
}

func uniqueSubstringMatch(nodes []coreapi.UINode, description string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(description))
	if needle == "" {
		return "", false
	}
	var match string
	count := 0
	for _, n := range nodes {
		if n.StableRefID == "" {
			continue
		}
		haystack := strings.ToLower(n.Name + " " + n.Value)
		if strings.Contains(haystack, needle) || strings.Contains(needle, strings.ToLower(n.Name)) && n.Name != "" {
			match = n.StableRefID
			count++
		}
	}
	if count == 1 {
		return match, true
	}
	return "", false
}

const locateSystemPrompt = `You are given a numbered list of UI elements (role, name, value) visible on
screen and a natural-language description of the element to click. Respond
with exactly the number of the single best-matching element and nothing
else. If no element matches, respond with "NONE".`

// locateViaModel asks the model to pick among the candidate nodes by index,
// avoiding any risk of it inventing a stable_ref_id that never existed.
func (c *Client) locateViaModel(ctx context.Context, nodes []coreapi.UINode, description string) (string, error) {
	var candidates []coreapi.UINode
	var sb strings.Builder
	for _, n := range nodes {
		if n.StableRefID == "" {
			continue
		}
		candidates = append(candidates, n)
		fmt.Fprintf(&sb, "%d. role=%q name=%q value=%q\n", len(candidates), n.Role, n.Name, n.Value)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("llmclient: locate: no candidate elements in snapshot")
	}

	prompt := fmt.Sprintf("Elements:\n%s\nDescription: %s", sb.String(), description)
	resp, err := c.complete(ctx, locateSystemPrompt, []anthropicMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("llmclient: locate: %w", err)
	}

	idxText := strings.TrimSpace(strings.SplitN(resp, "\n", 2)[0])
	if strings.EqualFold(idxText, "NONE") {
		return "", fmt.Errorf("llmclient: locate: no unique match for %q", description)
	}
	idx, err := strconv.Atoi(idxText)
	if err != nil || idx < 1 || idx > len(candidates) {
		return "", fmt.Errorf("llmclient: locate: model returned unparsable index %q", resp)
	}
	return candidates[idx-1].StableRefID, nil
}
