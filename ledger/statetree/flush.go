package statetree

// Flush writes every node not yet in the node store, children before parents, tagging them with
// the given ledger sequence. It returns the number of nodes written.
func (t *Tree) Flush(seq uint32) (int, error) {
	t.mu.RLock()
	root := t.root
	t.mu.RUnlock()

	if root == nil || root.Flushed() {
		return 0, nil
	}

	var pending []*Node
	collectUnflushed(root, &pending)

	err := t.family.storeNodes(pending, t.kind.objectType(), seq)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

// collectUnflushed appends the unflushed nodes of the subtree in post-order. A flushed node's
// subtree is flushed as a whole, since children are always written before their parent.
func collectUnflushed(n *Node, pending *[]*Node) {
	if n == nil || n.Flushed() {
		return
	}
	if !n.IsLeaf() {
		for _, c := range n.children {
			collectUnflushed(c, pending)
		}
	}
	*pending = append(*pending, n)
}
