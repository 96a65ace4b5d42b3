package pebble

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/cache"
	"github.com/vbc-network/vbcd/module/metrics"
	"github.com/vbc-network/vbcd/storage"
	"github.com/vbc-network/vbcd/storage/pebble/operation"
)

// NodeStore implements storage.NodeStore on top of pebble. Reads go through an age bounded
// cache which is expired on Sweep.
type NodeStore struct {
	dir   string
	db    *pebble.DB
	cache *cache.TaggedCache[hash.Hash, *storage.NodeObject]

	mu     sync.RWMutex
	closed bool
}

var _ storage.NodeStore = (*NodeStore)(nil)

// NewNodeStore opens the pebble node store in dir.
func NewNodeStore(collector module.CacheMetrics, dir string, cacheSize int) (*NodeStore, error) {
	db, err := OpenNodeStoreDB(dir)
	if err != nil {
		return nil, err
	}
	return &NodeStore{
		dir: dir,
		db:  db,
		cache: cache.NewTaggedCache[hash.Hash, *storage.NodeObject](
			metrics.ResourceNodeStoreCache,
			collector,
			cache.WithTargetSize(cacheSize),
		),
	}, nil
}

func (s *NodeStore) Name() string {
	return "pebble:" + s.dir
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

	if obj, ok := s.cache.Get(h); ok {
		return obj, nil
	}

	var obj storage.NodeObject
	err := operation.RetrieveNodeObject(h, &obj)(s.db)
	if err != nil {
		return nil, err
	}
	s.cache.Add(h, &obj)
	return &obj, nil
}

func (s *NodeStore) Store(obj *storage.NodeObject) error {
	return s.StoreBatch([]*storage.NodeObject{obj})
}

// StoreBatch writes all objects in a single pebble batch. Objects already present are skipped.
func (s *NodeStore) StoreBatch(objs []*storage.NodeObject) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrNotOpen
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, obj := range objs {
		var found bool
		err := operation.NodeObjectExists(obj.Hash, &found)(s.db)
		if err != nil {
			return err
		}
		if found {
			continue
		}
		err = operation.InsertNodeObject(obj)(batch)
		if err != nil {
			return fmt.Errorf("could not batch node object %v: %w", obj.Hash, err)
		}
	}

	err := batch.Commit(pebble.NoSync)
	if err != nil {
		return fmt.Errorf("could not commit node objects: %w", err)
	}

	for _, obj := range objs {
		s.cache.Add(obj.Hash, obj)
	}
	return nil
}

// ForEach calls fn for every stored object in hash order.
func (s *NodeStore) ForEach(fn func(obj *storage.NodeObject) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrNotOpen
	}
	return operation.IterateNodeObjects(fn)(s.db)
}

// Sweep expires cache entries which have not been read recently.
func (s *NodeStore) Sweep() {
	s.cache.Sweep()
}

func (s *NodeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cache.Clear()
	return s.db.Close()
}
