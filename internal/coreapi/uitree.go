package coreapi

// UINode is one node of an accessibility-tree snapshot (§4.1).
type UINode struct {
	Role        string    `json:"role"`
	Name        string    `json:"name,omitempty"`
	Value       string    `json:"value,omitempty"`
	Bounds      *Bounds   `json:"bounds,omitempty"`
	StableRefID string    `json:"stable_ref_id"`
	Children    []UINode  `json:"children,omitempty"`
}

// Bounds is an element's on-screen rectangle.
type Bounds struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// UITree is the result of SnapshotUI: the accessibility tree of the focused
// application/window, depth-bounded for latency.
type UITree struct {
	Root      UINode `json:"root"`
	CapturedAt int64 `json:"captured_at_unix"`
}

// FindByRef walks the tree looking for a node with the given stable ref id.
func (t UITree) FindByRef(ref string) (UINode, bool) {
	return findByRef(t.Root, ref)
}

func findByRef(n UINode, ref string) (UINode, bool) {
	if n.StableRefID == ref {
		return n, true
	}
	for _, c := range n.Children {
		if found, ok := findByRef(c, ref); ok {
			return found, true
		}
	}
	return UINode{}, false
}

// Flatten returns every node in the tree as a flat slice, roles/names first,
// for cheap UI-structural condition checks.
func (t UITree) Flatten() []UINode {
	var out []UINode
	var walk func(UINode)
	walk = func(n UINode) {
		out = append(out, n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Root)
	return out
}
