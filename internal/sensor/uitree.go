package sensor

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"

	coreerrors "surf-core/internal/errors"
	"surf-core/internal/coreapi"
)

// defaultDepth is "2 beyond focused window" from §4.1.
const defaultDepth = 2

// SnapshotUI shells out to the peekaboo accessibility CLI and converts its
// JSON element list into a coreapi.UITree, depth-bounded for latency.
// Element parsing mirrors peekaboo_cli.rs's fuzzy, order-tolerant key lookup
// since the CLI's JSON shape has drifted across versions.
func (d *DesktopSensor) SnapshotUI(ctx context.Context, scope *Scope) (coreapi.UITree, error) {
	args := []string{"see", "--json"}
	if scope != nil && scope.App != "" {
		args = append(args, "--app", scope.App)
	}

	cmd := exec.CommandContext(ctx, "peekaboo", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if isPermissionDenied(stderr.String()) {
			return coreapi.UITree{}, coreerrors.NewCoreError(coreerrors.KindPermissionDenied, err,
				"Accessibility permission is required. Grant it to this application in System Settings > Privacy & Security > Accessibility, then retry.")
		}
		return coreapi.UITree{}, coreerrors.NewCoreError(coreerrors.KindExecutionError, err, "accessibility snapshot command failed")
	}

	var raw map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return coreapi.UITree{}, coreerrors.NewCoreError(coreerrors.KindExecutionError, err, "accessibility snapshot returned non-JSON output")
	}

	elements := findElementsArray(raw)
	root := coreapi.UINode{Role: "window", Name: scopeName(scope), StableRefID: "root"}
	for _, el := range elements {
		node, ok := parseElement(el)
		if !ok {
			continue
		}
		root.Children = append(root.Children, node)
	}
	tree := coreapi.UITree{Root: root}
	return boundDepth(tree, defaultDepth), nil
}

func scopeName(scope *Scope) string {
	if scope == nil {
		return "focused"
	}
	return scope.App
}

// boundDepth truncates every branch below maxDepth (counted from the root)
// by dropping grandchildren past the bound, preserving latency.
func boundDepth(tree coreapi.UITree, maxDepth int) coreapi.UITree {
	tree.Root = truncate(tree.Root, maxDepth)
	return tree
}

func truncate(n coreapi.UINode, depthRemaining int) coreapi.UINode {
	if depthRemaining <= 0 {
		n.Children = nil
		return n
	}
	children := make([]coreapi.UINode, 0, len(n.Children))
	for _, c := range n.Children {
		children = append(children, truncate(c, depthRemaining-1))
	}
	n.Children = children
	return n
}

func findElementsArray(value any) []any {
	switch v := value.(type) {
	case map[string]any:
		for _, key := range []string{"elements", "items", "nodes", "refs"} {
			if arr, ok := v[key].([]any); ok {
				return arr
			}
		}
		for _, val := range v {
			if arr := findElementsArray(val); arr != nil {
				return arr
			}
		}
	case []any:
		for _, val := range v {
			if arr := findElementsArray(val); arr != nil {
				return arr
			}
		}
	}
	return nil
}

func parseElement(value any) (coreapi.UINode, bool) {
	obj, ok := value.(map[string]any)
	if !ok {
		return coreapi.UINode{}, false
	}
	ref, ok := findStringIn(obj, "id", "ref", "elementId", "element_id")
	if !ok {
		return coreapi.UINode{}, false
	}
	role, _ := findStringIn(obj, "role", "type", "kind")
	if role == "" {
		role = "unknown"
	}
	name, _ := findStringIn(obj, "name", "title", "label", "text", "value")

	node := coreapi.UINode{Role: role, Name: name, StableRefID: ref}
	node.Bounds = parseBounds(obj)
	return node, true
}

func findStringIn(obj map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := obj[k].(string); ok {
			trimmed := strings.TrimSpace(v)
			if trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

func parseBounds(obj map[string]any) *coreapi.Bounds {
	raw, ok := obj["bounds"]
	if !ok {
		return nil
	}
	switch b := raw.(type) {
	case map[string]any:
		return &coreapi.Bounds{X: toInt(b["x"]), Y: toInt(b["y"]), W: toInt(b["width"]), H: toInt(b["height"])}
	case []any:
		if len(b) == 4 {
			return &coreapi.Bounds{X: toInt(b[0]), Y: toInt(b[1]), W: toInt(b[2]), H: toInt(b[3])}
		}
	}
	return nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

