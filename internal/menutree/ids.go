package menutree

import (
	"cms0/internal/utils"

	"github.com/google/uuid"
)

const (
	idPrefix     = "item-"
	idSuffixLen  = 9
	maxIDRetries = 8
)

// IDGenerator hands out node ids unique within one document.
type IDGenerator struct {
	used   map[string]bool
	random func(int) (string, error)
}

// NewIDGenerator reserves every id already present in t.
func NewIDGenerator(t Tree) *IDGenerator {
	g := &IDGenerator{used: make(map[string]bool), random: utils.GenerateRandomString}
	t.Walk(func(n *Node, _ Path) bool {
		if n.ID != "" {
			g.used[n.ID] = true
		}
		return true
	})
	return g
}

// Reserve marks id as taken. It reports false if id was already taken.
func (g *IDGenerator) Reserve(id string) bool {
	if g.used[id] {
		return false
	}
	g.used[id] = true
	return true
}

// Next returns a fresh "item-xxxxxxxxx" id. If the random source fails or keeps colliding
// a uuid is used instead.
func (g *IDGenerator) Next() string {
	for i := 0; i < maxIDRetries; i++ {
		suffix, err := g.random(idSuffixLen)
		if err != nil {
			break
		}
		if id := idPrefix + suffix; g.Reserve(id) {
			return id
		}
	}
	for {
		if id := idPrefix + uuid.NewString(); g.Reserve(id) {
			return id
		}
	}
}

// Normalize gives every node a non-nil children list and an id unique within t.
// Missing ids and repeats of an earlier id are regenerated. It returns how many ids changed.
func Normalize(t Tree, g *IDGenerator) int {
	if g == nil {
		g = NewIDGenerator(t)
	}
	seen := make(map[string]bool)
	changed := 0
	t.Walk(func(n *Node, _ Path) bool {
		if n.Children == nil {
			n.Children = []*Node{}
		}
		if n.ID == "" || seen[n.ID] {
			n.ID = g.Next()
			changed++
		}
		seen[n.ID] = true
		return true
	})
	return changed
}
