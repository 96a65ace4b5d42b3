package badger

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/metrics"
	"github.com/vbc-network/vbcd/storage"
)

func withLimit(limit uint) func(*Cache) {
	return func(c *Cache) {
		c.limit = limit
	}
}

type storeFunc func(*storage.NodeObject) error

func withStore(store storeFunc) func(*Cache) {
	return func(c *Cache) {
		c.store = store
	}
}

func noStore(*storage.NodeObject) error {
	return fmt.Errorf("node object cache is read only")
}

type retrieveFunc func(hash.Hash) (*storage.NodeObject, error)

func withRetrieve(retrieve retrieveFunc) func(*Cache) {
	return func(c *Cache) {
		c.retrieve = retrieve
	}
}

func noRetrieve(hash.Hash) (*storage.NodeObject, error) {
	return nil, fmt.Errorf("node object cache has no backing table")
}

func withResource(resource string) func(*Cache) {
	return func(c *Cache) {
		c.resource = resource
	}
}

// Cache is a read-through LRU cache in front of the node object table.
type Cache struct {
	metrics  module.CacheMetrics
	limit    uint
	store    storeFunc
	retrieve retrieveFunc
	resource string
	cache    *lru.Cache
}

func newCache(collector module.CacheMetrics, options ...func(*Cache)) *Cache {
	c := Cache{
		metrics:  collector,
		limit:    1000,
		store:    noStore,
		retrieve: noRetrieve,
		resource: metrics.ResourceUndefined,
	}
	for _, option := range options {
		option(&c)
	}
	c.cache, _ = lru.New(int(c.limit))
	c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	return &c
}

// Get returns the cached object or reads it through the retrieve function and caches it.
func (c *Cache) Get(h hash.Hash) (*storage.NodeObject, error) {
	cached, ok := c.cache.Get(h)
	if ok {
		c.metrics.CacheHit(c.resource)
		return cached.(*storage.NodeObject), nil
	}
	c.metrics.CacheMiss(c.resource)

	obj, err := c.retrieve(h)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve node object %v: %w", h, err)
	}
	c.Insert(obj)
	return obj, nil
}

// Put persists the object through the store function and caches it.
func (c *Cache) Put(obj *storage.NodeObject) error {
	err := c.store(obj)
	if err != nil {
		return fmt.Errorf("could not store node object %v: %w", obj.Hash, err)
	}
	c.Insert(obj)
	return nil
}

// Insert caches an object which is already persisted, evicting the least recently used
// object at the limit.
func (c *Cache) Insert(obj *storage.NodeObject) {
	evicted := c.cache.Add(obj.Hash, obj)
	if !evicted {
		c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	}
}

// Trim evicts the least recently used objects until at most the given number remain.
func (c *Cache) Trim(keep uint) {
	for uint(c.cache.Len()) > keep {
		_, _, ok := c.cache.RemoveOldest()
		if !ok {
			break
		}
	}
	c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
}

// Purge drops every cached object.
func (c *Cache) Purge() {
	c.cache.Purge()
	c.metrics.CacheEntries(c.resource, 0)
}
