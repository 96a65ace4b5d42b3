package statetree

import (
	"fmt"

	"go.uber.org/atomic"

	"github.com/vbc-network/vbcd/ledger/common/hash"
)

// Radix is the branching factor of the tree; each level consumes one nibble of the key.
const Radix = 16

// MaxDepth is the deepest level a node can sit at (one level per key nibble).
const MaxDepth = 2 * hash.HashLen

// NodeType identifies the kind of a tree node and fixes how its hash is computed.
type NodeType uint8

const (
	NodeInner        NodeType = 1
	NodeAccountState NodeType = 2
	NodeTxNoMeta     NodeType = 3
	NodeTxWithMeta   NodeType = 4
)

func (t NodeType) String() string {
	switch t {
	case NodeInner:
		return "inner"
	case NodeAccountState:
		return "account_state"
	case NodeTxNoMeta:
		return "transaction"
	case NodeTxWithMeta:
		return "transaction_with_meta"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// IsLeaf returns true for every node type carrying an item.
func (t NodeType) IsLeaf() bool {
	return t == NodeAccountState || t == NodeTxNoMeta || t == NodeTxWithMeta
}

// Node is a vertex of the state tree. Nodes are immutable once created: updates build new
// nodes along the modified path and share every untouched subtree with the previous version.
//
// An inner node always knows the hashes of its children. The child pointers are only set for
// children built in memory; children of nodes loaded from the node store are resolved through
// the Family on demand.
type Node struct {
	typ  NodeType
	hash hash.Hash

	// inner nodes
	children    [Radix]*Node
	childHashes [Radix]hash.Hash

	// leaf nodes
	key  hash.Hash
	data []byte

	// flushed is set once the node is known to be present in the node store.
	flushed *atomic.Bool
}

// NewLeaf creates a leaf node for the given item.
func NewLeaf(typ NodeType, key hash.Hash, data []byte) (*Node, error) {
	if !typ.IsLeaf() {
		return nil, fmt.Errorf("node type %v is not a leaf type", typ)
	}
	n := &Node{
		typ:     typ,
		key:     key,
		data:    data,
		flushed: atomic.NewBool(false),
	}
	n.hash = leafHash(typ, key, data)
	return n, nil
}

func leafHash(typ NodeType, key hash.Hash, data []byte) hash.Hash {
	switch typ {
	case NodeTxNoMeta:
		return hash.Sum(hash.PrefixTxID, data)
	case NodeTxWithMeta:
		return hash.Sum(hash.PrefixTxNode, data, key[:])
	default:
		return hash.Sum(hash.PrefixLeafNode, data, key[:])
	}
}

func newInner(children [Radix]*Node, childHashes [Radix]hash.Hash) *Node {
	n := &Node{
		typ:         NodeInner,
		children:    children,
		childHashes: childHashes,
		flushed:     atomic.NewBool(false),
	}
	n.hash = innerHash(&childHashes)
	return n
}

func innerHash(childHashes *[Radix]hash.Hash) hash.Hash {
	parts := make([][]byte, 0, Radix)
	for i := range childHashes {
		parts = append(parts, childHashes[i][:])
	}
	return hash.Sum(hash.PrefixInnerNode, parts...)
}

// withChild returns a copy of the inner node with the given branch replaced.
// A nil child clears the branch.
func (n *Node) withChild(branch int, child *Node) *Node {
	children := n.children
	childHashes := n.childHashes
	children[branch] = child
	if child == nil {
		childHashes[branch] = hash.ZeroHash
	} else {
		childHashes[branch] = child.hash
	}
	return newInner(children, childHashes)
}

// Hash returns the node hash.
// Concurrency safe (as Nodes are immutable structures by convention)
func (n *Node) Hash() hash.Hash { return n.hash }

// Type returns the node type.
func (n *Node) Type() NodeType { return n.typ }

// IsLeaf returns true if the node carries an item.
func (n *Node) IsLeaf() bool { return n.typ.IsLeaf() }

// Key returns the item key of a leaf node.
func (n *Node) Key() hash.Hash { return n.key }

// Data returns the item payload of a leaf node. The returned slice must not be modified.
func (n *Node) Data() []byte { return n.data }

// ChildHash returns the hash of the given branch, zero if the branch is empty.
func (n *Node) ChildHash(branch int) hash.Hash { return n.childHashes[branch] }

// IsEmptyBranch returns true if the inner node has no child on the branch.
func (n *Node) IsEmptyBranch(branch int) bool { return n.childHashes[branch].IsZero() }

// branchCount returns the number of non-empty branches of an inner node.
func (n *Node) branchCount() int {
	count := 0
	for i := range n.childHashes {
		if !n.childHashes[i].IsZero() {
			count++
		}
	}
	return count
}

// Flushed reports whether the node was written to, or loaded from, the node store.
func (n *Node) Flushed() bool { return n.flushed.Load() }

func (n *Node) markFlushed() { n.flushed.Store(true) }
