package menutree

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cms0/internal/apperrors"
)

// State is the editor lifecycle: Closed -> List -> Editing -> (save | discard) -> List.
type State int

const (
	StateClosed State = iota
	StateList
	StateEditing
)

func (s State) String() string {
	switch s {
	case StateList:
		return "list"
	case StateEditing:
		return "editing"
	default:
		return "closed"
	}
}

var ErrWrongState = errors.New("menu editor is not in the required state")

// SaveFunc persists the serialized links document of menuID.
type SaveFunc func(ctx context.Context, menuID string, links []byte) error

// Editor is one editing session over a single menu. It is not safe for concurrent use;
// callers serialize operations the way a UI event loop would.
type Editor struct {
	state  State
	menuID string
	tree   Tree
	index  Index
	ids    *IDGenerator
	drag   map[string]Node

	// OnReorder runs after a move or reconcile that changed the tree.
	OnReorder func(Tree)
}

func NewEditor() *Editor {
	return &Editor{state: StateClosed}
}

func (e *Editor) State() State   { return e.state }
func (e *Editor) MenuID() string { return e.menuID }

func (e *Editor) require(s State) error {
	if e.state != s {
		return fmt.Errorf("%w: want %s, is %s", ErrWrongState, s, e.state)
	}
	return nil
}

// ShowList moves a closed editor to the list view.
func (e *Editor) ShowList() error {
	if e.state == StateEditing {
		return fmt.Errorf("%w: save or discard first", ErrWrongState)
	}
	e.state = StateList
	return nil
}

// Close leaves the list view.
func (e *Editor) Close() error {
	if err := e.require(StateList); err != nil {
		return err
	}
	e.state = StateClosed
	return nil
}

// Open loads links for menuID and starts editing. Unparsable links start an empty tree.
// The tree is normalized before the index is built so every node is addressable by id.
func (e *Editor) Open(menuID string, links []byte) error {
	if err := e.require(StateList); err != nil {
		return err
	}
	e.menuID = menuID
	e.tree = ParseLenient(links)
	e.ids = NewIDGenerator(e.tree)
	Normalize(e.tree, e.ids)
	e.refresh()
	e.drag = nil
	e.state = StateEditing
	return nil
}

func (e *Editor) refresh() {
	e.index = BuildIndex(e.tree)
}

// Tree returns a copy of the current tree.
func (e *Editor) Tree() Tree {
	return e.tree.Clone()
}

// Index returns the id -> entry cache of the current tree.
func (e *Editor) Index() Index {
	return e.index
}

func (e *Editor) TotalItems() int {
	return e.tree.Count()
}

// AddNode appends a copy of n under parent (the empty path adds a root item) and returns
// the stored node. n always receives a freshly generated id, as do its descendants.
func (e *Editor) AddNode(parent Path, n Node) (*Node, error) {
	if err := e.require(StateEditing); err != nil {
		return nil, err
	}
	if strings.TrimSpace(n.Title) == "" {
		return nil, apperrors.Invalid("title", "title is required")
	}
	if len(parent) > 0 {
		if _, err := e.tree.Get(parent); err != nil {
			return nil, err
		}
	}

	added := n.Clone()
	Tree{added}.Walk(func(c *Node, _ Path) bool {
		c.ID = e.ids.Next()
		return true
	})
	if err := e.tree.Insert(parent, -1, added); err != nil {
		return nil, err
	}
	e.refresh()
	return added, nil
}

// NodePatch updates only the fields that are set.
type NodePatch struct {
	Title       *string `json:"title"`
	URL         *string `json:"url"`
	Target      *string `json:"target"`
	Icon        *string `json:"icon"`
	Description *string `json:"description"`
}

func (e *Editor) UpdateNode(p Path, patch NodePatch) (*Node, error) {
	if err := e.require(StateEditing); err != nil {
		return nil, err
	}
	n, err := e.tree.Get(p)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, apperrors.Invalid("title", "title is required")
		}
		n.Title = *patch.Title
	}
	if patch.URL != nil {
		n.URL = *patch.URL
	}
	if patch.Target != nil {
		n.Target = *patch.Target
	}
	if patch.Icon != nil {
		n.Icon = *patch.Icon
	}
	if patch.Description != nil {
		n.Description = *patch.Description
	}
	e.refresh()
	return n, nil
}

// RemoveNode deletes the node at p and its whole subtree.
func (e *Editor) RemoveNode(p Path) (*Node, error) {
	if err := e.require(StateEditing); err != nil {
		return nil, err
	}
	n, err := e.tree.Remove(p)
	if err != nil {
		return nil, err
	}
	e.refresh()
	return n, nil
}

// Move relocates the node at src, with its subtree, so that it ends up at dst.
// dst.Parent() names the destination container as it is before the move and dst.Last()
// is the index inside that container once src has been taken out. A move that leaves the
// node where it was changes nothing and reports false.
func (e *Editor) Move(src, dst Path) (bool, error) {
	if err := e.require(StateEditing); err != nil {
		return false, err
	}
	if len(dst) == 0 {
		return false, fmt.Errorf("%w: empty destination", ErrInvalidPath)
	}
	return e.move(Drop{From: src.Parent(), FromIndex: src.Last(), To: dst.Parent(), ToIndex: dst.Last()})
}

func (e *Editor) move(d Drop) (bool, error) {
	src := d.From.Child(d.FromIndex)
	if _, err := e.tree.Get(src); err != nil {
		return false, err
	}
	if d.NoOp() {
		return false, nil
	}
	if src.Equal(d.To) || src.IsAncestorOf(d.To) {
		return false, apperrors.Invalid("to", "cannot move an item into its own subtree")
	}

	var owner *Node
	if len(d.To) > 0 {
		n, err := e.tree.Get(d.To)
		if err != nil {
			return false, err
		}
		owner = n
	}

	moved, err := e.tree.Remove(src)
	if err != nil {
		return false, err
	}
	insertAt(e.tree.containerOf(owner), d.ToIndex, moved)
	e.refresh()
	e.notify()
	return true, nil
}

func (e *Editor) notify() {
	if e.OnReorder != nil {
		e.OnReorder(e.Tree())
	}
}

// Save serializes the tree and hands it to save. On failure the editor stays in the
// editing state with its tree untouched so the caller can retry.
func (e *Editor) Save(ctx context.Context, save SaveFunc) ([]byte, error) {
	if err := e.require(StateEditing); err != nil {
		return nil, err
	}
	if err := Validate(e.tree); err != nil {
		return nil, err
	}
	links, err := Marshal(e.tree)
	if err != nil {
		return nil, err
	}
	if err := save(ctx, e.menuID, links); err != nil {
		return nil, err
	}
	e.reset()
	return links, nil
}

// Discard drops every unsaved change and returns to the list view.
func (e *Editor) Discard() error {
	if err := e.require(StateEditing); err != nil {
		return err
	}
	e.reset()
	return nil
}

func (e *Editor) reset() {
	e.state = StateList
	e.menuID = ""
	e.tree = nil
	e.index = nil
	e.ids = nil
	e.drag = nil
}
