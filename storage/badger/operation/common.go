package operation

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/vbc-network/vbcd/storage"
)

// insertOnce stores v under key unless the key is present. Node objects are content
// addressed, so a present key already holds the same value.
func insertOnce(key []byte, v interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("could not check key %x: %w", key, err)
		}
		return set(tx, key, v)
	}
}

// upsert stores v under key, overwriting a previous value.
func upsert(key []byte, v interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		return set(tx, key, v)
	}
}

func set(tx *badger.Txn, key []byte, v interface{}) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	err = tx.Set(key, data)
	if err != nil {
		return fmt.Errorf("could not write key %x: %w", key, err)
	}
	return nil
}

// retrieve decodes the value under key into v.
// Error returns:
//   - storage.ErrNotFound if the key is absent
func retrieve(key []byte, v interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("could not read key %x: %w", key, err)
		}
		return item.Value(func(data []byte) error {
			return decode(data, v)
		})
	}
}

// traverse visits every key under prefix in key order. create returns a fresh value to
// decode into for each key.
func traverse(prefix []byte, create func() interface{}, visit func(key []byte, v interface{}) error) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		if len(prefix) == 0 {
			return errors.New("traversal needs a key prefix")
		}
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			err := item.Value(func(data []byte) error {
				v := create()
				err := decode(data, v)
				if err != nil {
					return err
				}
				return visit(key, v)
			})
			if err != nil {
				return fmt.Errorf("could not visit key %x: %w", key, err)
			}
		}
		return nil
	}
}
