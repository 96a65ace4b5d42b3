package badger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v2"

	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/metrics"
	"github.com/vbc-network/vbcd/storage"
	"github.com/vbc-network/vbcd/storage/badger/operation"
)

// StoreVersion is the on-disk layout version written on first open.
const StoreVersion = 1

// NodeStore implements storage.NodeStore on top of badger.
type NodeStore struct {
	db    *badger.DB
	cache *Cache
	limit uint

	mu     sync.RWMutex
	closed bool
	ownsDB bool
}

var _ storage.NodeStore = (*NodeStore)(nil)

// NewNodeStore wraps an open badger database. cacheSize bounds the read cache.
func NewNodeStore(collector module.CacheMetrics, db *badger.DB, cacheSize uint) (*NodeStore, error) {
	err := db.Update(func(tx *badger.Txn) error {
		var version uint32
		err := operation.RetrieveStoreVersion(&version)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			return operation.InsertStoreVersion(StoreVersion)(tx)
		}
		if err != nil {
			return err
		}
		if version != StoreVersion {
			return fmt.Errorf("unsupported node store version %d (expected %d)", version, StoreVersion)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not check node store version: %w", err)
	}

	store := func(obj *storage.NodeObject) error {
		return db.Update(operation.InsertNodeObject(obj))
	}

	retrieve := func(h hash.Hash) (*storage.NodeObject, error) {
		var obj storage.NodeObject
		err := db.View(operation.RetrieveNodeObject(h, &obj))
		return &obj, err
	}

	s := &NodeStore{
		db:    db,
		limit: cacheSize,
		cache: newCache(collector,
			withLimit(cacheSize),
			withStore(store),
			withRetrieve(retrieve),
			withResource(metrics.ResourceNodeStoreCache),
		),
	}
	return s, nil
}

func (s *NodeStore) Name() string {
	return "badger:" + s.db.Opts().Dir
}

// Fetch returns the object with the given hash.
// Expected errors:
//   - storage.ErrNotFound if the object is not stored
func (s *NodeStore) Fetch(h hash.Hash) (*storage.NodeObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrNotOpen
	}
	return s.cache.Get(h)
}

func (s *NodeStore) Store(obj *storage.NodeObject) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrNotOpen
	}
	return s.cache.Put(obj)
}

// StoreBatch persists all objects. Large batches are split over several transactions
// when badger reports the transaction as too big.
func (s *NodeStore) StoreBatch(objs []*storage.NodeObject) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrNotOpen
	}

	tx := s.db.NewTransaction(true)
	defer func() {
		tx.Discard()
	}()

	for _, obj := range objs {
		err := operation.InsertNodeObject(obj)(tx)
		if errors.Is(err, badger.ErrTxnTooBig) {
			err = tx.Commit()
			if err != nil {
				return fmt.Errorf("could not commit partial batch: %w", err)
			}
			tx = s.db.NewTransaction(true)
			err = operation.InsertNodeObject(obj)(tx)
		}
		if err != nil {
			return fmt.Errorf("could not store node object %v: %w", obj.Hash, err)
		}
	}

	err := tx.Commit()
	if err != nil {
		return fmt.Errorf("could not commit batch: %w", err)
	}

	for _, obj := range objs {
		s.cache.Insert(obj)
	}
	return nil
}

// ForEach calls fn for every stored object. Iteration stops at the first error.
func (s *NodeStore) ForEach(fn func(obj *storage.NodeObject) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrNotOpen
	}
	return s.db.View(operation.TraverseNodeObjects(fn))
}

// Sweep evicts the colder quarter of the read cache.
func (s *NodeStore) Sweep() {
	s.cache.Trim(s.limit - s.limit/4)
}

// Close drops the cache, and closes the database if the store opened it.
func (s *NodeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cache.Purge()
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
