package statetree

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/storage"
)

// Kind tells what a tree holds; it selects the object type used when flushing.
type Kind uint8

const (
	KindState       Kind = 1
	KindTransaction Kind = 2
)

func (k Kind) objectType() storage.ObjectType {
	if k == KindTransaction {
		return storage.ObjectTxNode
	}
	return storage.ObjectAccountNode
}

// Tree is a 16-ary radix Merkle tree over 256-bit keys. A leaf sits at the shallowest depth
// at which its key prefix is unique, so the shape (and the root hash) only depends on the set
// of items.
//
// Nodes are immutable and shared between snapshots; a Tree is a mutable handle on a root.
// Trees loaded by root hash resolve nodes lazily through their Family, reporting nodes that
// are absent from the node store to the Family's missing node handler.
type Tree struct {
	family *Family
	kind   Kind

	mu        sync.RWMutex
	root      *Node     // nil while unresolved or empty
	rootHash  hash.Hash // zero for the empty tree
	seq       uint32
	immutable bool
}

// NewTree returns an empty mutable tree.
func NewTree(family *Family, kind Kind) *Tree {
	return &Tree{
		family: family,
		kind:   kind,
	}
}

// LoadTree returns an immutable tree with the given root. No node is fetched until it is
// needed; seq is the ledger sequence reported when a node turns out to be missing.
func LoadTree(family *Family, kind Kind, root hash.Hash, seq uint32) *Tree {
	return &Tree{
		family:    family,
		kind:      kind,
		rootHash:  root,
		seq:       seq,
		immutable: true,
	}
}

// Family returns the shared tree context.
func (t *Tree) Family() *Family {
	return t.family
}

// Kind returns what the tree holds.
func (t *Tree) Kind() Kind {
	return t.kind
}

// Hash returns the root hash, zero for the empty tree.
func (t *Tree) Hash() hash.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rootHash
}

// IsEmpty returns true if the tree holds no item.
func (t *Tree) IsEmpty() bool {
	return t.Hash().IsZero()
}

// SetLedgerSeq sets the ledger sequence reported with missing nodes.
func (t *Tree) SetLedgerSeq(seq uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq = seq
}

// LedgerSeq returns the ledger sequence reported with missing nodes.
func (t *Tree) LedgerSeq() uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.seq
}

// SetImmutable freezes the tree. Every later mutation fails with ErrImmutable.
func (t *Tree) SetImmutable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.immutable = true
}

// IsImmutable reports whether the tree was frozen.
func (t *Tree) IsImmutable() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.immutable
}

// Snapshot returns a new handle sharing all nodes with this tree.
func (t *Tree) Snapshot(mutable bool) *Tree {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &Tree{
		family:    t.family,
		kind:      t.kind,
		root:      t.root,
		rootHash:  t.rootHash,
		seq:       t.seq,
		immutable: !mutable,
	}
}

// rootNode resolves the root. Must be called with the lock held; the resolved root is not
// stored so that read locks suffice.
func (t *Tree) rootNode() (*Node, error) {
	if t.root != nil || t.rootHash.IsZero() {
		return t.root, nil
	}
	return t.fetch(t.rootHash)
}

func (t *Tree) fetch(h hash.Hash) (*Node, error) {
	n, err := t.family.FetchNode(h)
	if err != nil {
		var missing ErrMissingNode
		if errors.As(err, &missing) {
			t.family.ReportMissing(t.seq, h)
			return nil, ErrMissingNode{Hash: h, Seq: t.seq}
		}
		return nil, err
	}
	return n, nil
}

// child returns the child on the branch, nil if the branch is empty.
func (t *Tree) child(n *Node, branch int) (*Node, error) {
	if c := n.children[branch]; c != nil {
		return c, nil
	}
	if n.childHashes[branch].IsZero() {
		return nil, nil
	}
	return t.fetch(n.childHashes[branch])
}

// Get returns the leaf stored under key.
// Expected errors:
//   - ErrMissingNode if a node on the path is absent from the node store
func (t *Tree) Get(key hash.Hash) (*Node, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, err := t.rootNode()
	if err != nil {
		return nil, false, err
	}
	for depth := 0; n != nil; depth++ {
		if n.IsLeaf() {
			if n.key == key {
				return n, true, nil
			}
			return nil, false, nil
		}
		if depth >= MaxDepth {
			return nil, false, fmt.Errorf("inner node below maximum depth: %w", ErrInvalidNode)
		}
		n, err = t.child(n, key.Nibble(depth))
		if err != nil {
			return nil, false, err
		}
	}
	return nil, false, nil
}

// Has returns true if an item is stored under key.
func (t *Tree) Has(key hash.Hash) (bool, error) {
	_, found, err := t.Get(key)
	return found, err
}

// Put inserts or replaces the item stored under key.
// Expected errors:
//   - ErrImmutable if the tree is frozen
//   - ErrMissingNode if a node on the path is absent from the node store
func (t *Tree) Put(typ NodeType, key hash.Hash, data []byte) error {
	leaf, err := NewLeaf(typ, key, data)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.immutable {
		return ErrImmutable
	}

	root, err := t.rootNode()
	if err != nil {
		return err
	}
	updated, err := t.put(root, 0, leaf)
	if err != nil {
		return err
	}
	t.setRoot(updated)
	return nil
}

func (t *Tree) put(n *Node, depth int, leaf *Node) (*Node, error) {
	if n == nil {
		return leaf, nil
	}
	if n.IsLeaf() {
		if n.key == leaf.key {
			return leaf, nil
		}
		return split(n, leaf, depth)
	}
	branch := leaf.key.Nibble(depth)
	c, err := t.child(n, branch)
	if err != nil {
		return nil, err
	}
	updated, err := t.put(c, depth+1, leaf)
	if err != nil {
		return nil, err
	}
	return n.withChild(branch, updated), nil
}

// split builds the inner nodes separating two leaves with distinct keys.
func split(a, b *Node, depth int) (*Node, error) {
	if depth >= MaxDepth {
		return nil, fmt.Errorf("cannot split leaves with equal keys: %w", ErrInvalidNode)
	}
	var children [Radix]*Node
	var childHashes [Radix]hash.Hash

	na, nb := a.key.Nibble(depth), b.key.Nibble(depth)
	if na == nb {
		below, err := split(a, b, depth+1)
		if err != nil {
			return nil, err
		}
		children[na] = below
		childHashes[na] = below.hash
		return newInner(children, childHashes), nil
	}
	children[na], childHashes[na] = a, a.hash
	children[nb], childHashes[nb] = b, b.hash
	return newInner(children, childHashes), nil
}

// Delete removes the item stored under key. It returns false if there was no such item.
// Expected errors:
//   - ErrImmutable if the tree is frozen
//   - ErrMissingNode if a node on the path is absent from the node store
func (t *Tree) Delete(key hash.Hash) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.immutable {
		return false, ErrImmutable
	}

	root, err := t.rootNode()
	if err != nil {
		return false, err
	}
	updated, removed, err := t.remove(root, 0, key)
	if err != nil || !removed {
		return false, err
	}
	t.setRoot(updated)
	return true, nil
}

func (t *Tree) remove(n *Node, depth int, key hash.Hash) (*Node, bool, error) {
	if n == nil {
		return nil, false, nil
	}
	if n.IsLeaf() {
		if n.key == key {
			return nil, true, nil
		}
		return n, false, nil
	}

	branch := key.Nibble(depth)
	c, err := t.child(n, branch)
	if err != nil {
		return nil, false, err
	}
	updated, removed, err := t.remove(c, depth+1, key)
	if err != nil || !removed {
		return n, false, err
	}
	result := n.withChild(branch, updated)

	// an inner node left with a single leaf collapses into that leaf
	switch result.branchCount() {
	case 0:
		return nil, true, nil
	case 1:
		for i := 0; i < Radix; i++ {
			if result.IsEmptyBranch(i) {
				continue
			}
			only, err := t.child(result, i)
			if err != nil {
				return nil, false, err
			}
			if only.IsLeaf() {
				return only, true, nil
			}
		}
	}
	return result, true, nil
}

func (t *Tree) setRoot(n *Node) {
	t.root = n
	if n == nil {
		t.rootHash = hash.ZeroHash
		return
	}
	t.rootHash = n.hash
}

// ForEach calls fn for every leaf in ascending key order. Iteration stops at the first error.
// Expected errors:
//   - ErrMissingNode if a node is absent from the node store
func (t *Tree) ForEach(fn func(leaf *Node) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	root, err := t.rootNode()
	if err != nil {
		return err
	}
	return t.forEach(root, fn)
}

func (t *Tree) forEach(n *Node, fn func(leaf *Node) error) error {
	if n == nil {
		return nil
	}
	if n.IsLeaf() {
		return fn(n)
	}
	for branch := 0; branch < Radix; branch++ {
		c, err := t.child(n, branch)
		if err != nil {
			return err
		}
		err = t.forEach(c, fn)
		if err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of leaves.
func (t *Tree) Count() (int, error) {
	count := 0
	err := t.ForEach(func(*Node) error {
		count++
		return nil
	})
	return count, err
}
