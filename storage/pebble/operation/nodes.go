package operation

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/storage"
)

const (
	codeStoreVersion byte = 1
	codeNodeObject   byte = 10
)

var storeVersionKey = []byte{codeStoreVersion}

type storedObject struct {
	Type      uint8
	LedgerSeq uint32
	Data      []byte
}

func nodeKey(h hash.Hash) []byte {
	key := make([]byte, 1+hash.HashLen)
	key[0] = codeNodeObject
	copy(key[1:], h[:])
	return key
}

// NodeObjectExists reports whether an object with the given hash is stored.
func NodeObjectExists(h hash.Hash, found *bool) func(pebble.Reader) error {
	return exists(nodeKey(h), found)
}

// InsertNodeObject writes the node object keyed by its hash.
func InsertNodeObject(obj *storage.NodeObject) func(pebble.Writer) error {
	return insert(nodeKey(obj.Hash), &storedObject{
		Type:      uint8(obj.Type),
		LedgerSeq: obj.LedgerSeq,
		Data:      obj.Data,
	})
}

// RetrieveNodeObject reads the node object with the given hash.
// Error returns:
//   - storage.ErrNotFound if the object is not stored
func RetrieveNodeObject(h hash.Hash, obj *storage.NodeObject) func(pebble.Reader) error {
	return func(r pebble.Reader) error {
		var stored storedObject
		err := retrieve(nodeKey(h), &stored)(r)
		if err != nil {
			return err
		}
		obj.Type = storage.ObjectType(stored.Type)
		obj.LedgerSeq = stored.LedgerSeq
		obj.Hash = h
		obj.Data = stored.Data
		return nil
	}
}

// IterateNodeObjects calls fn for every stored node object in hash order.
func IterateNodeObjects(fn func(obj *storage.NodeObject) error) func(pebble.Reader) error {
	return iterate([]byte{codeNodeObject}, func() interface{} {
		return &storedObject{}
	}, func(key []byte, val interface{}) error {
		stored := val.(*storedObject)
		h, err := hash.ToHash(key[1:])
		if err != nil {
			return fmt.Errorf("invalid node object key %x: %w", key, err)
		}
		return fn(&storage.NodeObject{
			Type:      storage.ObjectType(stored.Type),
			LedgerSeq: stored.LedgerSeq,
			Hash:      h,
			Data:      stored.Data,
		})
	})
}

// InsertStoreVersion records the on-disk layout version.
func InsertStoreVersion(version uint32) func(pebble.Writer) error {
	return insert(storeVersionKey, version)
}

// RetrieveStoreVersion reads the on-disk layout version.
func RetrieveStoreVersion(version *uint32) func(pebble.Reader) error {
	return retrieve(storeVersionKey, version)
}
