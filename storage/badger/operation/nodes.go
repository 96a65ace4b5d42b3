package operation

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/storage"
)

// storedObject is the persisted form of a storage.NodeObject; the hash is the key.
type storedObject struct {
	Type      uint8
	LedgerSeq uint32
	Data      []byte
}

// InsertNodeObject stores the node object keyed by its hash. Existing objects are kept.
func InsertNodeObject(obj *storage.NodeObject) func(*badger.Txn) error {
	return insertOnce(makePrefix(codeNodeObject, obj.Hash), &storedObject{
		Type:      uint8(obj.Type),
		LedgerSeq: obj.LedgerSeq,
		Data:      obj.Data,
	})
}

// RetrieveNodeObject loads the node object with the given hash.
// Error returns:
//   - storage.ErrNotFound if the object is not stored
func RetrieveNodeObject(h hash.Hash, obj *storage.NodeObject) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		var stored storedObject
		err := retrieve(makePrefix(codeNodeObject, h), &stored)(tx)
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

// TraverseNodeObjects calls fn for every stored node object.
func TraverseNodeObjects(fn func(obj *storage.NodeObject) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeNodeObject), func() interface{} {
		return &storedObject{}
	}, func(key []byte, entity interface{}) error {
		stored := entity.(*storedObject)
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

// InsertStoreVersion records the on-disk format version of the node store.
func InsertStoreVersion(version uint32) func(*badger.Txn) error {
	return upsert(makePrefix(codeStoreVersion), version)
}

// RetrieveStoreVersion reads the on-disk format version of the node store.
func RetrieveStoreVersion(version *uint32) func(*badger.Txn) error {
	return retrieve(makePrefix(codeStoreVersion), version)
}
