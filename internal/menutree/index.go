package menutree

// Entry is the cached view of one node: its attributes (without children) and position.
type Entry struct {
	Node Node `json:"node"`
	Path Path `json:"path"`
}

// Index mirrors the authoritative tree as id -> entry for constant-time lookups while
// reordering. It must be rebuilt after every structural change.
type Index map[string]Entry

func BuildIndex(t Tree) Index {
	ix := make(Index)
	t.Walk(func(n *Node, p Path) bool {
		if n.ID != "" {
			ix[n.ID] = Entry{Node: n.Attrs(), Path: p}
		}
		return true
	})
	return ix
}

func (ix Index) Lookup(id string) (Entry, bool) {
	e, ok := ix[id]
	return e, ok
}
