// Package menutree holds the menu item tree stored in a menu's links column and the
// editor that mutates it.
package menutree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"cms0/internal/apperrors"
	console "cms0/internal/utils/logger"
)

var log = console.New("MENUTREE")

// Node is one menu item. Its ID is stable across moves; position is never part of identity.
type Node struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Target      string  `json:"target"`
	Icon        string  `json:"icon"`
	Description string  `json:"description"`
	Children    []*Node `json:"children"`
}

// Tree is the ordered list of root items.
type Tree []*Node

// Attrs returns a copy of n without its children.
func (n *Node) Attrs() Node {
	c := *n
	c.Children = nil
	return c
}

// Clone deep-copies n and its subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := n.Attrs()
	c.Children = make([]*Node, 0, len(n.Children))
	for _, child := range n.Children {
		if child != nil {
			c.Children = append(c.Children, child.Clone())
		}
	}
	return &c
}

func (t Tree) Clone() Tree {
	out := make(Tree, 0, len(t))
	for _, n := range t {
		if n != nil {
			out = append(out, n.Clone())
		}
	}
	return out
}

// Walk visits every node depth-first in document order. Returning false stops the walk.
func (t Tree) Walk(fn func(n *Node, path Path) bool) {
	walk(t, nil, fn)
}

func walk(nodes []*Node, parent Path, fn func(*Node, Path) bool) bool {
	for i, n := range nodes {
		if n == nil {
			continue
		}
		p := parent.Child(i)
		if !fn(n, p) {
			return false
		}
		if !walk(n.Children, p, fn) {
			return false
		}
	}
	return true
}

// Count is the number of nodes at every depth.
func (t Tree) Count() int {
	total := 0
	t.Walk(func(*Node, Path) bool {
		total++
		return true
	})
	return total
}

// IDs lists node ids in document order.
func (t Tree) IDs() []string {
	var ids []string
	t.Walk(func(n *Node, _ Path) bool {
		ids = append(ids, n.ID)
		return true
	})
	return ids
}

// Find returns the node with id and its path.
func (t Tree) Find(id string) (*Node, Path, bool) {
	var (
		found *Node
		at    Path
	)
	t.Walk(func(n *Node, p Path) bool {
		if n.ID == id {
			found, at = n, p
			return false
		}
		return true
	})
	return found, at, found != nil
}

// Parse decodes a stored links document. Empty input and JSON null yield an empty tree.
// A document that is itself a JSON string holding the tree is unwrapped once.
func Parse(data []byte) (Tree, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Tree{}, nil
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, apperrors.Invalid("links", "malformed JSON: "+err.Error())
		}
		if strings.TrimSpace(inner) != "" && strings.TrimSpace(inner)[0] == '"' {
			return nil, apperrors.Invalid("links", "links must be a JSON array")
		}
		return Parse([]byte(inner))
	}

	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, apperrors.Invalid("links", "malformed JSON: "+err.Error())
	}
	return t.Clone(), nil
}

// ParseLenient is Parse for stored data: malformed input degrades to an empty tree.
func ParseLenient(data []byte) Tree {
	t, err := Parse(data)
	if err != nil {
		log.Warn("Discarding unparsable menu links (%d bytes): %v", len(data), err)
		return Tree{}
	}
	return t
}

// Marshal encodes t with every children array present. An empty tree encodes as [].
func Marshal(t Tree) ([]byte, error) {
	out, err := json.Marshal(t.Clone())
	if err != nil {
		return nil, fmt.Errorf("failed to encode menu links: %w", err)
	}
	return out, nil
}

// Validate reports missing titles, missing ids and duplicate ids with their field paths,
// e.g. links[0].children[1].title.
func Validate(t Tree) error {
	verr := &apperrors.ValidationError{}
	seen := make(map[string]string)
	t.Walk(func(n *Node, p Path) bool {
		field := p.Field("links")
		if strings.TrimSpace(n.Title) == "" {
			verr.Add(field+".title", "title is required")
		}
		switch {
		case n.ID == "":
			verr.Add(field+".id", "id is required")
		case seen[n.ID] != "":
			verr.Add(field+".id", fmt.Sprintf("duplicate id %q (also at %s)", n.ID, seen[n.ID]))
		default:
			seen[n.ID] = field
		}
		return true
	})
	if verr.Empty() {
		return nil
	}
	return verr
}
