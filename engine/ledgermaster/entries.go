package ledgermaster

import (
	"time"

	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/cache"
	"github.com/vbc-network/vbcd/module/metrics"
	"github.com/vbc-network/vbcd/storage"
)

// CachedEntries caches decoded state entries by the hash of their leaf, so the same entry
// shared by many ledgers is decoded once.
type CachedEntries struct {
	cache *cache.TaggedCache[hash.Hash, *ledger.Entry]
}

var _ module.Sweepable = (*CachedEntries)(nil)

func NewCachedEntries(collector module.CacheMetrics, options ...cache.Option) *CachedEntries {
	return &CachedEntries{
		cache: cache.NewTaggedCache[hash.Hash, *ledger.Entry](metrics.ResourceCachedEntries, collector, options...),
	}
}

// Entry reads the entry stored under index in the snapshot.
// Expected errors:
//   - storage.ErrNotFound if there is no such entry
//   - statetree.ErrMissingNode if the state tree is incomplete
func (c *CachedEntries) Entry(snapshot *ledger.Snapshot, index hash.Hash) (*ledger.Entry, error) {
	leaf, found, err := snapshot.StateTree().Get(index)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, storage.ErrNotFound
	}
	if entry, ok := c.cache.Get(leaf.Hash()); ok {
		return entry, nil
	}
	entry, err := ledger.DecodeEntry(index, leaf.Data())
	if err != nil {
		return nil, err
	}
	c.cache.Add(leaf.Hash(), entry)
	return entry, nil
}

func (c *CachedEntries) Len() int {
	return c.cache.Len()
}

func (c *CachedEntries) Tune(size int, age time.Duration) {
	c.cache.SetTargetSize(size)
	c.cache.SetTargetAge(age)
}

func (c *CachedEntries) Sweep() {
	c.cache.Sweep()
}
