package inmemory

import (
	"sort"
	"sync"

	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/storage"
)

// NodeStore keeps node objects in memory. It backs standalone nodes started with the
// memory backend and tests.
type NodeStore struct {
	mu      sync.RWMutex
	objects map[hash.Hash]*storage.NodeObject
	closed  bool
}

var _ storage.NodeStore = (*NodeStore)(nil)

func NewNodeStore() *NodeStore {
	return &NodeStore{
		objects: make(map[hash.Hash]*storage.NodeObject),
	}
}

func (s *NodeStore) Name() string {
	return "memory"
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
	obj, ok := s.objects[h]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return obj, nil
}

func (s *NodeStore) Store(obj *storage.NodeObject) error {
	return s.StoreBatch([]*storage.NodeObject{obj})
}

func (s *NodeStore) StoreBatch(objs []*storage.NodeObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrNotOpen
	}
	for _, obj := range objs {
		if _, ok := s.objects[obj.Hash]; ok {
			continue
		}
		s.objects[obj.Hash] = obj
	}
	return nil
}

// ForEach calls fn for every object in hash order.
func (s *NodeStore) ForEach(fn func(obj *storage.NodeObject) error) error {
	s.mu.RLock()
	objs := make([]*storage.NodeObject, 0, len(s.objects))
	for _, obj := range s.objects {
		objs = append(objs, obj)
	}
	closed := s.closed
	s.mu.RUnlock()

	if closed {
		return storage.ErrNotOpen
	}
	sort.Slice(objs, func(i, j int) bool {
		return objs[i].Hash.String() < objs[j].Hash.String()
	})
	for _, obj := range objs {
		err := fn(obj)
		if err != nil {
			return err
		}
	}
	return nil
}

// Remove drops the object with the given hash. Tests use it to simulate a damaged store.
func (s *NodeStore) Remove(h hash.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, h)
}

// Len returns the number of stored objects.
func (s *NodeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *NodeStore) Sweep() {}

func (s *NodeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
