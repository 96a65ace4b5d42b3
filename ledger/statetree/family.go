package statetree

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/cache"
	"github.com/vbc-network/vbcd/module/metrics"
	"github.com/vbc-network/vbcd/storage"
)

// MissingNodeHandler is notified whenever a tree finds a node absent from the node store.
// Implementations should return quickly; MissingNode is called while a tree read is in progress.
type MissingNodeHandler interface {
	// MissingNode reports a missing node of the ledger with the given sequence.
	MissingNode(seq uint32)
	// MissingNodeHash reports a missing node when the ledger sequence is unknown.
	MissingNodeHash(h hash.Hash)
}

// Family holds what every tree of a node shares: the node store, the cache of decoded
// nodes, the cache of subtrees known to be complete, and the missing node handler.
type Family struct {
	log       zerolog.Logger
	store     storage.NodeStore
	treeCache *cache.TaggedCache[hash.Hash, *Node]
	fullBelow *cache.KeyCache[hash.Hash]

	mu      sync.RWMutex
	handler MissingNodeHandler
}

// NewFamily creates the shared tree context. The cache options apply to the tree node cache;
// the full-below cache is sized with fullBelowOpts.
func NewFamily(log zerolog.Logger, store storage.NodeStore, collector module.CacheMetrics, treeCacheOpts []cache.Option, fullBelowOpts []cache.Option) *Family {
	return &Family{
		log:       log.With().Str("component", "state_tree").Logger(),
		store:     store,
		treeCache: cache.NewTaggedCache[hash.Hash, *Node](metrics.ResourceTreeNodeCache, collector, treeCacheOpts...),
		fullBelow: cache.NewKeyCache[hash.Hash](metrics.ResourceFullBelowCache, collector, fullBelowOpts...),
	}
}

// SetMissingNodeHandler installs the receiver of missing node reports. Reports made
// before a handler is installed are only logged.
func (f *Family) SetMissingNodeHandler(handler MissingNodeHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
}

// NodeStore returns the backing node store.
func (f *Family) NodeStore() storage.NodeStore {
	return f.store
}

// TreeNodeCache returns the cache of decoded nodes.
func (f *Family) TreeNodeCache() *cache.TaggedCache[hash.Hash, *Node] {
	return f.treeCache
}

// FullBelowCache returns the cache of inner node hashes whose subtrees are fully present.
func (f *Family) FullBelowCache() *cache.KeyCache[hash.Hash] {
	return f.fullBelow
}

// FetchNode returns the node with the given hash from the cache or the node store.
// Expected errors:
//   - ErrMissingNode if the node store does not hold the node
//   - ErrInvalidNode if the stored node is corrupt
func (f *Family) FetchNode(h hash.Hash) (*Node, error) {
	if n, ok := f.treeCache.Get(h); ok {
		return n, nil
	}

	obj, err := f.store.Fetch(h)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrMissingNode{Hash: h}
		}
		return nil, fmt.Errorf("could not fetch node %v: %w", h, err)
	}

	n, err := DecodeNode(h, obj.Data)
	if err != nil {
		return nil, err
	}
	f.treeCache.Add(h, n)
	return n, nil
}

// ReportMissing routes a missing node to the handler: by ledger sequence when it is known,
// by hash otherwise.
func (f *Family) ReportMissing(seq uint32, h hash.Hash) {
	f.mu.RLock()
	handler := f.handler
	f.mu.RUnlock()

	f.log.Debug().Uint32("seq", seq).Str("hash", h.String()).Msg("missing state tree node")
	if handler == nil {
		return
	}
	if seq != 0 {
		handler.MissingNode(seq)
		return
	}
	handler.MissingNodeHash(h)
}

// storeNodes persists the given nodes in one batch and marks them flushed.
func (f *Family) storeNodes(nodes []*Node, objType storage.ObjectType, seq uint32) error {
	if len(nodes) == 0 {
		return nil
	}
	objs := make([]*storage.NodeObject, 0, len(nodes))
	for _, n := range nodes {
		objs = append(objs, &storage.NodeObject{
			Type:      objType,
			LedgerSeq: seq,
			Hash:      n.hash,
			Data:      EncodeNode(n),
		})
	}
	err := f.store.StoreBatch(objs)
	if err != nil {
		return fmt.Errorf("could not store %d tree nodes: %w", len(objs), err)
	}
	for _, n := range nodes {
		n.markFlushed()
		f.treeCache.Add(n.hash, n)
	}
	return nil
}
