package statetree

import (
	"errors"
	"fmt"

	"github.com/vbc-network/vbcd/ledger/common/hash"
)

var (
	// ErrImmutable is returned by every mutation of a tree that was set immutable.
	ErrImmutable = errors.New("tree is immutable")

	// ErrInvalidNode is returned when a stored node cannot be decoded or fails its hash check.
	ErrInvalidNode = errors.New("invalid tree node")
)

// ErrMissingNode is returned when a node referenced by the tree is neither cached nor
// present in the node store.
type ErrMissingNode struct {
	Hash hash.Hash
	// Seq is the ledger sequence of the tree, 0 if unknown.
	Seq uint32
}

func (e ErrMissingNode) Error() string {
	return fmt.Sprintf("missing tree node %v (ledger %d)", e.Hash, e.Seq)
}

// Is returns true if the type of errors are the same
func (e ErrMissingNode) Is(other error) bool {
	_, ok := other.(ErrMissingNode)
	return ok
}

// IsMissingNode returns true if the error is, or wraps, an ErrMissingNode.
func IsMissingNode(err error) bool {
	return errors.Is(err, ErrMissingNode{})
}
