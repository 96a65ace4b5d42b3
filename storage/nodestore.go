package storage

import (
	"github.com/vbc-network/vbcd/ledger/common/hash"
)

// ObjectType tags what a stored node object represents.
type ObjectType uint8

const (
	ObjectUnknown     ObjectType = 0
	ObjectLedger      ObjectType = 1
	ObjectAccountNode ObjectType = 3
	ObjectTxNode      ObjectType = 4
)

func (t ObjectType) String() string {
	switch t {
	case ObjectLedger:
		return "ledger"
	case ObjectAccountNode:
		return "account_node"
	case ObjectTxNode:
		return "transaction_node"
	default:
		return "unknown"
	}
}

// NodeObject is a content addressed blob persisted in the node store. Hash is the hash of the
// object content; Data is the serialized state tree node (or ledger header).
type NodeObject struct {
	Type      ObjectType
	LedgerSeq uint32
	Hash      hash.Hash
	Data      []byte
}

// NodeStore is the content addressed backend holding state tree nodes.
// Implementations must be safe for concurrent use.
type NodeStore interface {
	// Name returns a descriptive name of the backend, used in logs.
	Name() string

	// Fetch returns the object stored under the given hash.
	// Expected errors:
	//   - storage.ErrNotFound if no object is stored under the hash
	Fetch(h hash.Hash) (*NodeObject, error)

	// Store persists the object. Storing an existing hash is a no-op.
	Store(obj *NodeObject) error

	// StoreBatch persists all objects atomically.
	StoreBatch(objs []*NodeObject) error

	// ForEach calls fn for every stored object in unspecified order.
	ForEach(fn func(obj *NodeObject) error) error

	// Sweep drops expired entries of the backend's read cache.
	Sweep()

	// Close releases the backend.
	Close() error
}
