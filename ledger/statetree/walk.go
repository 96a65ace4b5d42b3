package statetree

import (
	"errors"
	"fmt"

	"github.com/vbc-network/vbcd/ledger/common/hash"
)

// Walk visits every node of the tree and returns the hashes of the nodes absent from the node
// store, at most maxMissing of them (0 means no limit). Subtrees whose inner node is in the
// full-below cache are known to be complete and are skipped; subtrees found complete are added
// to it. Missing nodes found by a walk are not reported to the missing node handler.
func (t *Tree) Walk(maxMissing int) ([]hash.Hash, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	w := &walker{family: t.family, maxMissing: maxMissing}
	if t.root != nil {
		_, err := w.visit(t.root)
		return w.missing, err
	}
	if t.rootHash.IsZero() {
		return nil, nil
	}
	_, err := w.visitHash(t.rootHash)
	return w.missing, err
}

type walker struct {
	family     *Family
	maxMissing int
	missing    []hash.Hash
}

func (w *walker) full() bool {
	return w.maxMissing > 0 && len(w.missing) >= w.maxMissing
}

// visitHash resolves and visits the node. It returns true if the subtree is complete.
func (w *walker) visitHash(h hash.Hash) (bool, error) {
	if w.family.fullBelow.Touch(h) {
		return true, nil
	}
	n, err := w.family.FetchNode(h)
	if err != nil {
		if errors.Is(err, ErrMissingNode{}) {
			w.missing = append(w.missing, h)
			return false, nil
		}
		return false, fmt.Errorf("could not walk node %v: %w", h, err)
	}
	return w.visit(n)
}

func (w *walker) visit(n *Node) (bool, error) {
	if n.IsLeaf() {
		return true, nil
	}
	if n.Flushed() && w.family.fullBelow.Touch(n.hash) {
		return true, nil
	}

	complete := true
	for branch := 0; branch < Radix; branch++ {
		if w.full() {
			return false, nil
		}
		var ok bool
		var err error
		switch {
		case n.children[branch] != nil:
			ok, err = w.visit(n.children[branch])
		case !n.childHashes[branch].IsZero():
			ok, err = w.visitHash(n.childHashes[branch])
		default:
			continue
		}
		if err != nil {
			return false, err
		}
		complete = complete && ok
	}

	// only subtrees persisted in the node store are known to stay complete
	if complete && n.Flushed() {
		w.family.fullBelow.Insert(n.hash)
	}
	return complete, nil
}
