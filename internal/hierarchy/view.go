package hierarchy

import (
	"context"
	"errors"
	"sync"

	"cms0/internal/metrics"
)

type NodeType string

const (
	NodeCurrent     NodeType = "current"
	NodeSuperior    NodeType = "superior"
	NodeSibling     NodeType = "sibling"
	NodeSubordinate NodeType = "subordinate"
)

var (
	ErrUnknownNode      = errors.New("team node not found")
	ErrNotExpandable    = errors.New("team node cannot be expanded")
	ErrExpandInProgress = errors.New("team node is already loading")
)

// Loader fetches one more generation below userID.
type Loader interface {
	LoadSubordinates(ctx context.Context, userID, level string) ([]Member, error)
}

type LoaderFunc func(ctx context.Context, userID, level string) ([]Member, error)

func (f LoaderFunc) LoadSubordinates(ctx context.Context, userID, level string) ([]Member, error) {
	return f(ctx, userID, level)
}

type node struct {
	member     Member
	typ        NodeType
	children   []string
	unloaded   bool
	loading    bool
	err        error
	childIndex map[string]bool
}

// View is a per-session team tree with lazy subtree expansion. Expansions of different
// nodes may run concurrently; a node never has two expansions in flight.
type View struct {
	mu      sync.Mutex
	loader  Loader
	metrics *metrics.Metrics
	rootID  string
	nodes   map[string]*node
	order   []string
}

// NewView seeds the view from a loaded team. Subordinates of the current user are its
// children; siblings and subordinates become expandable when they have subordinates of their own.
func NewView(team Team, loader Loader, m *metrics.Metrics) *View {
	v := &View{loader: loader, metrics: m, nodes: make(map[string]*node)}

	if team.Superior != nil {
		v.add(*team.Superior, NodeSuperior)
	}
	v.rootID = team.CurrentUser.ID
	current := v.add(team.CurrentUser, NodeCurrent)
	for _, s := range team.Siblings {
		v.add(s, NodeSibling)
	}
	for _, s := range team.Subordinates {
		if v.add(s, NodeSubordinate) != nil {
			current.appendChild(s.ID)
		}
	}
	// Direct children came with the team payload.
	current.unloaded = false
	return v
}

func (v *View) add(m Member, typ NodeType) *node {
	if _, exists := v.nodes[m.ID]; exists {
		return nil
	}
	n := &node{member: m, typ: typ, unloaded: typ != NodeSuperior && m.SubordinateCount > 0, childIndex: map[string]bool{}}
	v.nodes[m.ID] = n
	v.order = append(v.order, m.ID)
	return n
}

func (n *node) appendChild(id string) bool {
	if n.childIndex[id] {
		return false
	}
	n.childIndex[id] = true
	n.children = append(n.children, id)
	return true
}

// Expand loads one generation below id and appends it, de-duplicated, to the node's children.
// The node stays expandable while expansions keep yielding new children and becomes
// non-expandable once one yields none. On failure prior children are kept and the error is
// recorded on the node so the caller can retry.
func (v *View) Expand(ctx context.Context, id string) ([]Member, error) {
	v.mu.Lock()
	n, ok := v.nodes[id]
	if !ok {
		v.mu.Unlock()
		return nil, ErrUnknownNode
	}
	if n.typ == NodeSuperior {
		v.mu.Unlock()
		return nil, ErrNotExpandable
	}
	if n.loading {
		v.mu.Unlock()
		return nil, ErrExpandInProgress
	}
	n.loading = true
	n.err = nil
	v.mu.Unlock()

	members, err := v.loader.LoadSubordinates(ctx, id, "direct")

	v.mu.Lock()
	defer v.mu.Unlock()
	n.loading = false

	if err != nil {
		n.err = err
		v.metrics.SubtreeExpanded("error")
		return nil, err
	}

	var added []Member
	for _, m := range members {
		if m.ID == id || !n.appendChild(m.ID) {
			continue
		}
		if existing, exists := v.nodes[m.ID]; exists {
			existing.member = m
		} else {
			v.add(m, NodeSubordinate)
		}
		added = append(added, m)
	}

	n.unloaded = len(added) > 0
	if len(added) == 0 {
		v.metrics.SubtreeExpanded("empty")
	} else {
		v.metrics.SubtreeExpanded("ok")
	}
	return added, nil
}

// NodeState is a read-only copy of one node.
type NodeState struct {
	Member              Member      `json:"member"`
	Type                NodeType    `json:"type"`
	Children            []NodeState `json:"children"`
	HasUnloadedChildren bool        `json:"hasUnloadedChildren"`
	Loading             bool        `json:"loading"`
	Error               string      `json:"error,omitempty"`
}

// Snapshot is the serializable form of the whole view.
type Snapshot struct {
	Superior *NodeState  `json:"superior,omitempty"`
	Current  NodeState   `json:"currentUser"`
	Siblings []NodeState `json:"siblings"`
}

func (v *View) Node(id string) (NodeState, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.nodes[id]; !ok {
		return NodeState{}, false
	}
	return v.state(id, map[string]bool{}), true
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap := Snapshot{Siblings: []NodeState{}}
	for _, id := range v.order {
		n := v.nodes[id]
		switch n.typ {
		case NodeSuperior:
			s := v.state(id, map[string]bool{})
			snap.Superior = &s
		case NodeCurrent:
			snap.Current = v.state(id, map[string]bool{})
		case NodeSibling:
			snap.Siblings = append(snap.Siblings, v.state(id, map[string]bool{}))
		}
	}
	return snap
}

func (v *View) state(id string, visiting map[string]bool) NodeState {
	n := v.nodes[id]
	s := NodeState{
		Member:              n.member,
		Type:                n.typ,
		Children:            []NodeState{},
		HasUnloadedChildren: n.unloaded,
		Loading:             n.loading,
	}
	if n.err != nil {
		s.Error = n.err.Error()
	}
	visiting[id] = true
	for _, c := range n.children {
		if visiting[c] {
			continue
		}
		s.Children = append(s.Children, v.state(c, visiting))
	}
	delete(visiting, id)
	return s
}
