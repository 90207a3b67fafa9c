package menutree

import (
	"encoding/json"
	"strings"
)

// Drop describes a finished drag: the node at index FromIndex of container From ended at
// index ToIndex of container To. Container paths refer to the tree before the drop.
type Drop struct {
	From      Path `json:"from"`
	FromIndex int  `json:"fromIndex"`
	To        Path `json:"to"`
	ToIndex   int  `json:"toIndex"`
}

// NoOp reports whether the drop left the node in the same container at the same index.
func (d Drop) NoOp() bool {
	return d.From.Equal(d.To) && d.FromIndex == d.ToIndex
}

// Observed is one item as the rendered list shows it after a drag, in display order.
// Only ID and Children are reliable; Label and Href are what is visible, and Snapshot is
// an optional serialized Node embedded in the rendered element.
type Observed struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Href     string          `json:"href"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
	Children []Observed      `json:"children"`
}

// BeginDrag snapshots the subtree at src so that its attributes survive the rebuild even if
// the index no longer knows them.
func (e *Editor) BeginDrag(src Path) error {
	if err := e.require(StateEditing); err != nil {
		return err
	}
	n, err := e.tree.Get(src)
	if err != nil {
		return err
	}
	e.drag = make(map[string]Node)
	Tree{n}.Walk(func(c *Node, _ Path) bool {
		e.drag[c.ID] = c.Attrs()
		return true
	})
	return nil
}

// Reconcile rebuilds the whole tree from the observed display order after drop. A no-op
// drop skips the rebuild and reports false. Each node's attributes come from, in order:
// the drag snapshot, the index, the embedded snapshot, and finally the visible label and
// href. Nodes without an id, or repeating one already placed, get a new id. Items the
// observed list leaves out are put back under their previous parent rather than lost.
func (e *Editor) Reconcile(d Drop, observed []Observed) (bool, error) {
	if err := e.require(StateEditing); err != nil {
		return false, err
	}
	if d.NoOp() {
		e.drag = nil
		return false, nil
	}

	placed := make(map[string]bool)
	rebuilt := e.rebuild(observed, placed)
	rebuilt, restored := restoreMissing(e.tree, rebuilt, placed)
	if len(restored) > 0 {
		log.Warn("Menu %s: restored %d item(s) missing from the observed order: %s",
			e.menuID, len(restored), strings.Join(restored, ","))
	}
	e.tree = rebuilt
	e.drag = nil
	e.refresh()
	e.notify()
	return true, nil
}

func (e *Editor) rebuild(observed []Observed, placed map[string]bool) Tree {
	out := make(Tree, 0, len(observed))
	for _, o := range observed {
		n := e.resolve(o)
		if n.ID == "" || placed[n.ID] {
			n.ID = e.ids.Next()
		} else {
			e.ids.Reserve(n.ID)
		}
		placed[n.ID] = true
		n.Children = e.rebuild(o.Children, placed)
		out = append(out, &n)
	}
	return out
}

func (e *Editor) resolve(o Observed) Node {
	id := strings.TrimSpace(o.ID)
	if id != "" {
		if n, ok := e.drag[id]; ok {
			return n
		}
		if entry, ok := e.index.Lookup(id); ok {
			return entry.Node
		}
	}
	if len(o.Snapshot) > 0 {
		var n Node
		if err := json.Unmarshal(o.Snapshot, &n); err == nil {
			n.Children = nil
			if n.ID == "" {
				n.ID = id
			}
			return n
		}
		log.Warn("Ignoring unreadable snapshot for menu item %q", id)
	}
	return Node{ID: id, Title: strings.TrimSpace(o.Label), URL: strings.TrimSpace(o.Href)}
}

// restoreMissing appends every node of old that placed does not know to its previous
// parent in rebuilt, or to the root list when that parent is gone. Old nodes are visited
// parent first, so a restored parent takes its missing children along.
func restoreMissing(old, rebuilt Tree, placed map[string]bool) (Tree, []string) {
	byID := make(map[string]*Node)
	rebuilt.Walk(func(n *Node, _ Path) bool {
		byID[n.ID] = n
		return true
	})

	var restored []string
	var visit func(nodes []*Node, parentID string)
	visit = func(nodes []*Node, parentID string) {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			if n.ID != "" && !placed[n.ID] {
				c := n.Attrs()
				c.Children = []*Node{}
				if parent, ok := byID[parentID]; ok {
					parent.Children = append(parent.Children, &c)
				} else {
					rebuilt = append(rebuilt, &c)
				}
				placed[n.ID] = true
				byID[n.ID] = &c
				restored = append(restored, n.ID)
			}
			visit(n.Children, n.ID)
		}
	}
	visit(old, "")
	return rebuilt, restored
}
