package menutree

import (
	"fmt"
	"strconv"
	"strings"

	"cms0/internal/apperrors"
)

// ErrInvalidPath is returned for index paths that do not address a node or container.
var ErrInvalidPath = fmt.Errorf("invalid tree path: %w", apperrors.ErrValidation)

// Path addresses a node by child indexes from the root, e.g. [0 2] is the third child of
// the first root item. The empty path is the root container.
type Path []int

// ParsePath reads the dotted form "0.2.1".
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, ".")
	p := make(Path, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, s)
		}
		p[i] = n
	}
	return p, nil
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Field renders p as a JSON field path under root, e.g. links[0].children[2].
func (p Path) Field(root string) string {
	var b strings.Builder
	b.WriteString(root)
	for i, n := range p {
		if i > 0 {
			b.WriteString(".children")
		}
		fmt.Fprintf(&b, "[%d]", n)
	}
	return b.String()
}

func (p Path) Clone() Path {
	return append(Path{}, p...)
}

// Child returns a new path to the i-th child of p.
func (p Path) Child(i int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = i
	return out
}

// Parent returns the container path of p. The parent of a root item is the empty path.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Path{}
	}
	return p[:len(p)-1].Clone()
}

func (p Path) Last() int {
	if len(p) == 0 {
		return -1
	}
	return p[len(p)-1]
}

func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether o lies strictly inside the subtree at p.
func (p Path) IsAncestorOf(o Path) bool {
	if len(p) >= len(o) {
		return false
	}
	return p.Equal(o[:len(p)])
}

// Get returns the node at p.
func (t Tree) Get(p Path) (*Node, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	nodes := []*Node(t)
	var n *Node
	for _, i := range p {
		if i < 0 || i >= len(nodes) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPath, p)
		}
		n = nodes[i]
		nodes = n.Children
	}
	return n, nil
}

// children returns the container addressed by parent: the root list for the empty path,
// otherwise the children of the node at parent.
func (t *Tree) children(parent Path) (*[]*Node, error) {
	if len(parent) == 0 {
		return (*[]*Node)(t), nil
	}
	n, err := t.Get(parent)
	if err != nil {
		return nil, err
	}
	return &n.Children, nil
}

// containerOf returns the root list when owner is nil, otherwise owner's children.
func (t *Tree) containerOf(owner *Node) *[]*Node {
	if owner == nil {
		return (*[]*Node)(t)
	}
	return &owner.Children
}

// Insert places n at index inside the container at parent. An index past the end appends.
func (t *Tree) Insert(parent Path, index int, n *Node) error {
	list, err := t.children(parent)
	if err != nil {
		return err
	}
	insertAt(list, index, n)
	return nil
}

func insertAt(list *[]*Node, index int, n *Node) {
	if index < 0 || index > len(*list) {
		index = len(*list)
	}
	*list = append(*list, nil)
	copy((*list)[index+1:], (*list)[index:])
	(*list)[index] = n
}

// Remove detaches and returns the node at p together with its subtree.
func (t *Tree) Remove(p Path) (*Node, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	list, err := t.children(p.Parent())
	if err != nil {
		return nil, err
	}
	i := p.Last()
	if i < 0 || i >= len(*list) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, p)
	}
	n := (*list)[i]
	*list = append((*list)[:i], (*list)[i+1:]...)
	return n, nil
}
