package tree

import (
	"maps"
	"slices"

	"golang.org/x/sync/semaphore"

	"github.com/IvanBrykalov/pojocache/fqn"
)

// node is one element of the tree. Structure and data are guarded by the
// store lock; lock is the node lock held by writers that must keep the
// node from being evicted, and acquired by Evict with a timeout.
type node struct {
	fqn      fqn.Fqn
	parent   *node
	children map[string]*node
	data     map[string]any

	lock *semaphore.Weighted
}

func newNode(f fqn.Fqn, parent *node) *node {
	return &node{
		fqn:    f,
		parent: parent,
		lock:   semaphore.NewWeighted(1),
	}
}

func (n *node) child(name string) *node { return n.children[name] }

func (n *node) addChild(c *node) {
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	n.children[c.fqn.LastElement()] = c
}

// snapshot returns a copy of the node data.
func (n *node) snapshot() map[string]any {
	if len(n.data) == 0 {
		return map[string]any{}
	}
	return maps.Clone(n.data)
}

// postOrder appends n's subtree to out, children before parents.
func (n *node) postOrder(out []*node) []*node {
	for _, c := range n.children {
		out = c.postOrder(out)
	}
	return append(out, n)
}

// preOrder appends n's subtree to out, parents before children and
// siblings by name.
func (n *node) preOrder(out []*node) []*node {
	out = append(out, n)
	for _, name := range slices.Sorted(maps.Keys(n.children)) {
		out = n.children[name].preOrder(out)
	}
	return out
}
