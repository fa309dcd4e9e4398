package htmltree

// FindTags returns the direct children of id whose tag name equals name byte
// for byte, in document order. Grandchildren are not searched. The result is
// a fresh slice, empty when nothing matches; the nodes stay owned by the tree.
func (t *Tree) FindTags(id NodeID, name []byte) []NodeID {
	out := make([]NodeID, 0)
	n := t.Node(id)
	if n == nil {
		return out
	}
	for _, c := range n.Children {
		if t.nodes[c].Tag.EqualBytes(name) {
			out = append(out, c)
		}
	}
	return out
}

// FindTagsString is FindTags for a string name.
func (t *Tree) FindTagsString(id NodeID, name string) []NodeID {
	return t.FindTags(id, []byte(name))
}
