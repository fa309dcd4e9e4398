// Package htmltree turns a flat HTML byte buffer into a tree of tagged nodes.
//
// The tree is an arena: nodes live in one slice and refer to each other by
// NodeID. A node's parent is stored as an index, never as an owning pointer,
// so releasing the Tree releases every node at once.
package htmltree

import (
	"strings"

	"github.com/hyperifyio/tablegrab/internal/bytebuf"
)

// NodeID addresses a node inside its Tree.
type NodeID int

// NoNode is the parent of the root.
const NoNode NodeID = -1

// Node is one parsed tag. Absent Tag or Content are nil, and a node without
// nested elements has nil Children.
type Node struct {
	Tag      *bytebuf.Buffer
	Content  *bytebuf.Buffer
	Children []NodeID
	Parent   NodeID
}

// Tree owns every node produced from one document.
type Tree struct {
	nodes []Node
}

// NewTree returns an empty arena.
func NewTree() *Tree {
	return &Tree{}
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Root returns the first node allocated, or NoNode for an empty tree.
func (t *Tree) Root() NodeID {
	if len(t.nodes) == 0 {
		return NoNode
	}
	return 0
}

// Node returns the node for id. The pointer is invalidated by the next
// allocation in the same tree.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// add allocates a node under parent and links it as parent's last child.
func (t *Tree) add(parent NodeID) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{Parent: parent})
	if parent != NoNode {
		p := &t.nodes[parent]
		p.Children = append(p.Children, id)
	}
	return id
}

// Release tears down the arena.
func (t *Tree) Release() {
	for i := range t.nodes {
		t.nodes[i] = Node{}
	}
	t.nodes = nil
}

// TagName returns the node's tag name, or "" when absent.
func (t *Tree) TagName(id NodeID) string {
	n := t.Node(id)
	if n == nil {
		return ""
	}
	return n.Tag.String()
}

// ContentString returns the node's own text content, or "" when absent.
func (t *Tree) ContentString(id NodeID) string {
	n := t.Node(id)
	if n == nil {
		return ""
	}
	return n.Content.String()
}

// Text concatenates the node's content with the text of its descendants in
// document order. Non-empty pieces are joined by a single space.
func (t *Tree) Text(id NodeID) string {
	var parts []string
	t.collectText(id, &parts)
	return strings.Join(parts, " ")
}

func (t *Tree) collectText(id NodeID, parts *[]string) {
	n := t.Node(id)
	if n == nil {
		return
	}
	if n.Content.Len() > 0 {
		*parts = append(*parts, n.Content.String())
	}
	for _, c := range n.Children {
		t.collectText(c, parts)
	}
}

// Walk visits id and its descendants depth-first in document order. Returning
// false from fn skips the node's children.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	n := t.Node(id)
	if n == nil {
		return
	}
	if !fn(id) {
		return
	}
	for _, c := range t.nodes[id].Children {
		t.Walk(c, fn)
	}
}
