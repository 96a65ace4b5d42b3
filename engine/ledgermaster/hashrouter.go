package ledgermaster

import (
	"sync"
	"time"

	"github.com/vbc-network/vbcd/ledger"
	"github.com/vbc-network/vbcd/ledger/common/hash"
	"github.com/vbc-network/vbcd/module"
	"github.com/vbc-network/vbcd/module/cache"
)

const (
	// resourceHashRouter labels the router's cache in the metrics.
	resourceHashRouter = "hash_router"
	hashRouterSize     = 16384
)

// HashRouter remembers the outcome of checking recently seen transactions.
type HashRouter struct {
	mu      sync.Mutex
	entries *cache.TaggedCache[hash.Hash, ledger.Validity]
}

var _ module.Sweepable = (*HashRouter)(nil)

// NewHashRouter creates a router whose entries expire after holdTime without use.
func NewHashRouter(collector module.CacheMetrics, holdTime time.Duration) *HashRouter {
	return &HashRouter{
		entries: cache.NewTaggedCache[hash.Hash, ledger.Validity](resourceHashRouter, collector,
			cache.WithTargetSize(hashRouterSize), cache.WithTargetAge(holdTime)),
	}
}

// SetValidity records the validity of the transaction. A known validity is only ever raised,
// except that SigBad always wins.
func (r *HashRouter) SetValidity(id hash.Hash, validity ledger.Validity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.entries.Get(id)
	switch {
	case !ok, validity == ledger.ValiditySigBad:
	case current == ledger.ValiditySigBad, current >= validity:
		return
	}
	r.entries.Add(id, validity)
}

// Validity returns the recorded validity, or ValidityUnknown.
func (r *HashRouter) Validity(id hash.Hash) ledger.Validity {
	v, ok := r.entries.Get(id)
	if !ok {
		return ledger.ValidityUnknown
	}
	return v
}

func (r *HashRouter) Sweep() {
	r.entries.Sweep()
}
