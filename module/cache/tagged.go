package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vbc-network/vbcd/module"
)

const (
	defaultTargetSize = 1024
	defaultTargetAge  = 2 * time.Minute
)

type entry[V any] struct {
	value    V
	lastUsed time.Time
}

// TaggedCache is a size bounded LRU cache whose entries additionally expire once they have
// not been touched for longer than the target age. Expiry only happens on Sweep, which is
// driven by the node's periodic maintenance pass.
type TaggedCache[K comparable, V any] struct {
	mu         sync.Mutex
	name       string
	metrics    module.CacheMetrics
	targetSize int
	targetAge  time.Duration
	now        func() time.Time
	items      *lru.Cache[K, *entry[V]]
}

type Option func(*config)

type config struct {
	targetSize int
	targetAge  time.Duration
	now        func() time.Time
}

// WithTargetSize sets the maximum number of entries kept by the cache.
func WithTargetSize(size int) Option {
	return func(c *config) {
		c.targetSize = size
	}
}

// WithTargetAge sets the age after which an untouched entry is evicted on Sweep.
func WithTargetAge(age time.Duration) Option {
	return func(c *config) {
		c.targetAge = age
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// NewTaggedCache creates a new cache reporting to the given metrics under the given resource name.
func NewTaggedCache[K comparable, V any](name string, collector module.CacheMetrics, options ...Option) *TaggedCache[K, V] {
	cfg := config{
		targetSize: defaultTargetSize,
		targetAge:  defaultTargetAge,
		now:        time.Now,
	}
	for _, apply := range options {
		apply(&cfg)
	}
	if cfg.targetSize < 1 {
		cfg.targetSize = 1
	}

	// lru.New only fails for non-positive sizes, which is excluded above
	items, _ := lru.New[K, *entry[V]](cfg.targetSize)

	return &TaggedCache[K, V]{
		name:       name,
		metrics:    collector,
		targetSize: cfg.targetSize,
		targetAge:  cfg.targetAge,
		now:        cfg.now,
		items:      items,
	}
}

// Name returns the resource name of the cache.
func (c *TaggedCache[K, V]) Name() string {
	return c.name
}

// Get returns the cached value and refreshes its age.
func (c *TaggedCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items.Get(key)
	if !ok {
		c.metrics.CacheMiss(c.name)
		var zero V
		return zero, false
	}
	c.metrics.CacheHit(c.name)
	e.lastUsed = c.now()
	return e.value, true
}

// Has checks for the key without refreshing it.
func (c *TaggedCache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Contains(key)
}

// Add inserts or replaces the value for the given key.
func (c *TaggedCache[K, V]) Add(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Add(key, &entry[V]{value: value, lastUsed: c.now()})
	c.metrics.CacheEntries(c.name, uint(c.items.Len()))
}

// Remove drops the key from the cache.
func (c *TaggedCache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Remove(key)
	c.metrics.CacheEntries(c.name, uint(c.items.Len()))
}

// Len returns the number of entries currently cached.
func (c *TaggedCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// SetTargetSize resizes the cache, evicting the oldest entries if needed.
func (c *TaggedCache[K, V]) SetTargetSize(size int) {
	if size < 1 {
		size = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.targetSize = size
	c.items.Resize(size)
	c.metrics.CacheEntries(c.name, uint(c.items.Len()))
}

// SetTargetAge changes the expiry age applied on the next Sweep.
func (c *TaggedCache[K, V]) SetTargetAge(age time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targetAge = age
}

// Sweep evicts every entry that has not been used within the target age.
func (c *TaggedCache[K, V]) Sweep() {
	c.Expire()
}

// Expire is Sweep returning the number of evicted entries.
func (c *TaggedCache[K, V]) Expire() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.targetAge)
	evicted := 0
	for _, key := range c.items.Keys() {
		e, ok := c.items.Peek(key)
		if !ok {
			continue
		}
		if e.lastUsed.Before(cutoff) {
			c.items.Remove(key)
			evicted++
		}
	}
	c.metrics.CacheEntries(c.name, uint(c.items.Len()))
	return evicted
}

// Clear removes all entries.
func (c *TaggedCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Purge()
	c.metrics.CacheEntries(c.name, 0)
}

// KeyCache is a TaggedCache which only records presence of keys.
type KeyCache[K comparable] struct {
	*TaggedCache[K, struct{}]
}

// NewKeyCache creates a presence-only cache.
func NewKeyCache[K comparable](name string, collector module.CacheMetrics, options ...Option) *KeyCache[K] {
	return &KeyCache[K]{NewTaggedCache[K, struct{}](name, collector, options...)}
}

// Insert marks the key as present.
func (c *KeyCache[K]) Insert(key K) {
	c.Add(key, struct{}{})
}

// Touch reports whether the key is present, refreshing it if so.
func (c *KeyCache[K]) Touch(key K) bool {
	_, ok := c.Get(key)
	return ok
}
